package port

import (
	"net"
	"strconv"
	"testing"

	. "github.com/onsi/gomega"
)

func TestAllocate(t *testing.T) {
	g := NewWithT(t)

	p, err := Allocate()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p).To(BeNumerically(">", 1024))
	g.Expect(p).To(BeNumerically("<=", 65535))

	// The port was released and can be bound again.
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(l.Close()).To(Succeed())
}
