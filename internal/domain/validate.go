package domain

import (
	"math"
	"strings"

	"github.com/goccy/go-json"
)

var (
	protocols = []string{"http", "https"}
	methods   = []string{"get", "post", "put", "delete"}
)

const (
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 5
)

// Validation is the result of normalizing a stored check record.
type Validation struct {
	Check   Check
	Invalid []string // names of mandatory fields that failed
}

func (v Validation) Eligible() bool { return len(v.Invalid) == 0 }

// Validate coerces a raw record into a Check. Fields that are missing or
// badly typed are left zero and named in Invalid; state and lastChecked
// are always defaulted and never make a check ineligible.
func Validate(raw []byte) Validation {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		m = map[string]any{}
	}

	var v Validation
	bad := func(field string) { v.Invalid = append(v.Invalid, field) }

	c := &v.Check
	if s, ok := trimmed(m["id"]); ok && len(s) == IDLength {
		c.ID = s
	} else {
		bad("id")
	}
	if s, ok := trimmed(m["userPhone"]); ok && s != "" {
		c.UserPhone = s
	} else {
		bad("userPhone")
	}
	if s, ok := oneOf(m["protocol"], protocols); ok {
		c.Protocol = s
	} else {
		bad("protocol")
	}
	if s, ok := trimmed(m["url"]); ok && s != "" {
		c.URL = s
	} else {
		bad("url")
	}
	if s, ok := oneOf(m["method"], methods); ok {
		c.Method = s
	} else {
		bad("method")
	}
	if codes, ok := statusCodes(m["successCodes"]); ok {
		c.SuccessCodes = codes
	} else {
		bad("successCodes")
	}
	if n, ok := integer(m["timeoutSeconds"]); ok && n >= MinTimeoutSeconds && n <= MaxTimeoutSeconds {
		c.TimeoutSeconds = int(n)
	} else {
		bad("timeoutSeconds")
	}

	c.State = StateDown
	if s, ok := oneOf(m["state"], []string{string(StateUp), string(StateDown)}); ok {
		c.State = State(s)
	}
	if n, ok := integer(m["lastChecked"]); ok && n > 0 {
		c.LastChecked = n
	}
	return v
}

func trimmed(x any) (string, bool) {
	s, ok := x.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func oneOf(x any, allowed []string) (string, bool) {
	s, ok := trimmed(x)
	if !ok {
		return "", false
	}
	for _, a := range allowed {
		if s == a {
			return s, true
		}
	}
	return "", false
}

func integer(x any) (int64, bool) {
	f, ok := x.(float64)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func statusCodes(x any) ([]int, bool) {
	list, ok := x.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	codes := make([]int, 0, len(list))
	for _, e := range list {
		n, ok := integer(e)
		if !ok || n < 100 || n > 599 {
			return nil, false
		}
		codes = append(codes, int(n))
	}
	return codes, true
}
