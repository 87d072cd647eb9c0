package oidc

import (
	"context"
	"net/http"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/matheuscscp/loopback-login/internal/browser"
	"github.com/matheuscscp/loopback-login/internal/callback"
	"github.com/matheuscscp/loopback-login/internal/login"
	"github.com/matheuscscp/loopback-login/internal/oidctest"
)

// followingBrowser loads the start URL and follows the redirect back to
// the loopback listener.
func followingBrowser(pages chan<- int) browser.Launcher {
	return browser.LauncherFunc(func(_ context.Context, url string) error {
		go func() {
			resp, err := http.Get(url)
			if err != nil {
				pages <- 0
				return
			}
			resp.Body.Close()
			pages <- resp.StatusCode
		}()
		return nil
	})
}

func TestSignin_EndToEnd(t *testing.T) {
	tests := []struct {
		name           string
		setupServer    func(s *oidctest.Server)
		expectedStatus login.Status
		expectedError  string
	}{
		{
			name:           "success",
			expectedStatus: login.StatusSuccess,
		},
		{
			name: "user denied consent",
			setupServer: func(s *oidctest.Server) {
				s.AuthorizeError = "access_denied"
			},
			expectedStatus: login.StatusAuthorizationError,
			expectedError:  "access_denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			srv := oidctest.NewServer(t, testClientID)
			srv.UserInfo = map[string]any{"email": "ada@example.com"}
			if tt.setupServer != nil {
				tt.setupServer(srv)
			}

			reg := prometheus.NewRegistry()
			metrics := callback.NewMetrics(reg)
			pages := make(chan int, 1)
			flow := login.New(newTestClient(Config{}), followingBrowser(pages),
				callback.Config{Timeout: 10 * time.Second}, metrics)

			res, err := flow.Signin(context.Background(), srv.URL)

			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(res.Status).To(Equal(tt.expectedStatus), res.Error)
			g.Eventually(pages).Should(Receive(Equal(http.StatusOK)))

			count, err := testutil.GatherAndCount(reg, "loopback_login_callback_outcomes_total")
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(count).To(Equal(1))

			if tt.expectedStatus != login.StatusSuccess {
				g.Expect(res.Error).To(Equal(tt.expectedError))
				return
			}
			g.Expect(res.Subject).To(Equal("user-1"))
			g.Expect(res.Claims).To(HaveKeyWithValue("iss", srv.URL))
			g.Expect(res.Claims).To(HaveKeyWithValue("email", "ada@example.com"))
			g.Expect(res.AccessToken).NotTo(BeEmpty())
		})
	}
}
