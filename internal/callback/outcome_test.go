package callback

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		payload  string
		expected Outcome
	}{
		{payload: "", expected: EmptyResponse()},
		{payload: " \t\r\n", expected: EmptyResponse()},
		{payload: "?code=abc123", expected: Success("?code=abc123")},
		{payload: " code=abc123 ", expected: Success(" code=abc123 ")},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(classify(tt.payload)).To(Equal(tt.expected))
		})
	}
}

func TestPending(t *testing.T) {
	g := NewWithT(t)

	p := newPending()
	_, ok := p.result()
	g.Expect(ok).To(BeFalse())

	results := make(chan bool, 10)
	for i := range 10 {
		go func() {
			if i%2 == 0 {
				results <- p.resolve(Success("?code=abc"))
			} else {
				results <- p.resolve(Timeout("expired"))
			}
		}()
	}

	won := 0
	for range 10 {
		if <-results {
			won++
		}
	}
	g.Expect(won).To(Equal(1))

	first, ok := p.result()
	g.Expect(ok).To(BeTrue())
	g.Expect(p.resolve(ProtocolError("late"))).To(BeFalse())

	again, _ := p.result()
	g.Expect(again).To(Equal(first))
}

func TestKindString(t *testing.T) {
	g := NewWithT(t)

	g.Expect(KindSuccess.String()).To(Equal("success"))
	g.Expect(KindTimeout.String()).To(Equal("timeout"))
	g.Expect(KindProtocolError.String()).To(Equal("protocol_error"))
	g.Expect(KindEmptyResponse.String()).To(Equal("empty_response"))
	g.Expect(Kind(42).String()).To(Equal("unknown"))
}
