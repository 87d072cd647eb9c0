package main

import (
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestNewParser(t *testing.T) {
	g := NewWithT(t)
	t.Setenv("LOOPBACK_LOGIN_CONFIG", "/tmp/loopback-login.yaml")
	t.Setenv("LOOPBACK_LOGIN_AUTHORITY", "")
	t.Setenv("LOG_LEVEL", "")

	var a args
	p, err := newParser(&a)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(p.Parse([]string{"--authority", "https://idp.example.com", "--log-level", "debug"})).To(Succeed())
	g.Expect(a.Config).To(Equal("/tmp/loopback-login.yaml"))
	g.Expect(a.Authority).To(Equal("https://idp.example.com"))
	g.Expect(a.LogLevel).To(Equal("debug"))
	g.Expect(a.MetricsFile).To(BeEmpty())

	var usage strings.Builder
	p.WriteUsage(&usage)
	g.Expect(usage.String()).To(HavePrefix("Usage: loopback-login "))
}
