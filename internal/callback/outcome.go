package callback

import "strings"

type Kind int

const (
	KindSuccess Kind = iota
	KindTimeout
	KindProtocolError
	KindEmptyResponse
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTimeout:
		return "timeout"
	case KindProtocolError:
		return "protocol_error"
	case KindEmptyResponse:
		return "empty_response"
	default:
		return "unknown"
	}
}

// Outcome is the single result of a callback listener. Payload is set only
// for KindSuccess, Reason for every other kind.
type Outcome struct {
	Kind    Kind
	Payload string
	Reason  string
}

func Success(payload string) Outcome {
	return Outcome{Kind: KindSuccess, Payload: payload}
}

func Timeout(reason string) Outcome {
	return Outcome{Kind: KindTimeout, Reason: reason}
}

func ProtocolError(reason string) Outcome {
	return Outcome{Kind: KindProtocolError, Reason: reason}
}

func EmptyResponse() Outcome {
	return Outcome{Kind: KindEmptyResponse, Reason: "empty response"}
}

// classify maps a raw callback payload to its outcome.
func classify(payload string) Outcome {
	if strings.TrimSpace(payload) == "" {
		return EmptyResponse()
	}
	return Success(payload)
}
