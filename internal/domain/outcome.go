package domain

import "fmt"

type ErrorKind string

const (
	ErrKindDNS       ErrorKind = "dns"
	ErrKindConnect   ErrorKind = "connect"
	ErrKindTLS       ErrorKind = "tls"
	ErrKindTimeout   ErrorKind = "timeout"
	ErrKindTransport ErrorKind = "transport"
	ErrKindRequest   ErrorKind = "request"
)

type ProbeError struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

func (e *ProbeError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

// Outcome is the terminal result of one probe. Exactly one of
// ResponseCode and Error is set.
type Outcome struct {
	ResponseCode *int        `json:"responseCode,omitempty"`
	Error        *ProbeError `json:"error,omitempty"`
	LatencyMS    float64     `json:"latencyMs"`
}

func Responded(code int) Outcome { return Outcome{ResponseCode: &code} }

func Failed(kind ErrorKind, detail string) Outcome {
	return Outcome{Error: &ProbeError{Kind: kind, Detail: detail}}
}

// StateFor derives the up/down state of c from o.
func StateFor(c Check, o Outcome) State {
	if o.Error == nil && o.ResponseCode != nil && c.Accepts(*o.ResponseCode) {
		return StateUp
	}
	return StateDown
}

// LogEntry is one line of a check's append-only log.
type LogEntry struct {
	Check   Check   `json:"check"`
	Outcome Outcome `json:"outcome"`
	State   State   `json:"state"`
	Alert   bool    `json:"alert"`
	Time    int64   `json:"time"`
}
