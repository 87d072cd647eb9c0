package browser

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	. "github.com/onsi/gomega"
)

func TestForOS(t *testing.T) {
	const url = "https://idp.example.com/authorize?client_id=Shell.Windows&state=xyz"

	tests := []struct {
		goos         string
		expectedArgs []string
	}{
		{
			goos:         "windows",
			expectedArgs: []string{"cmd", "/c", "start", "https://idp.example.com/authorize?client_id=Shell.Windows^&state=xyz"},
		},
		{
			goos:         "darwin",
			expectedArgs: []string{"open", url},
		},
		{
			goos:         "linux",
			expectedArgs: []string{"xdg-open", url},
		},
		{
			goos:         "freebsd",
			expectedArgs: []string{"xdg-open", url},
		},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			g := NewWithT(t)

			var started *exec.Cmd
			c := forOS(tt.goos)
			c.start = func(cmd *exec.Cmd) error {
				started = cmd
				return nil
			}

			err := c.Open(context.Background(), "  "+url+" ")

			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(started).NotTo(BeNil())
			g.Expect(started.Args).To(Equal(tt.expectedArgs))
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Run("empty url", func(t *testing.T) {
		g := NewWithT(t)

		c := forOS("linux")
		c.start = func(*exec.Cmd) error {
			t.Fatal("must not start a process")
			return nil
		}

		g.Expect(c.Open(context.Background(), "   ")).To(MatchError("empty url"))
	})

	t.Run("start failure", func(t *testing.T) {
		g := NewWithT(t)

		c := forOS("darwin")
		c.start = func(*exec.Cmd) error { return errors.New("not found") }

		err := c.Open(context.Background(), "https://idp.example.com")
		g.Expect(err).To(MatchError("failed to start 'open': not found"))
	})
}

func TestLauncherFunc(t *testing.T) {
	g := NewWithT(t)

	var opened string
	var l Launcher = LauncherFunc(func(_ context.Context, url string) error {
		opened = url
		return nil
	})

	g.Expect(l.Open(context.Background(), "https://idp.example.com")).To(Succeed())
	g.Expect(opened).To(Equal("https://idp.example.com"))
}
