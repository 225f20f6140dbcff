package domain

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

type State string

const (
	StateUp   State = "up"
	StateDown State = "down"
)

// IDLength is the length of check and token ids.
const IDLength = 20

// Check is the stored record of one monitored target.
// LastChecked is unix milliseconds; zero means the check was never probed.
type Check struct {
	ID             string `json:"id"`
	UserPhone      string `json:"userPhone"`
	Protocol       string `json:"protocol"`
	URL            string `json:"url"`
	Method         string `json:"method"`
	SuccessCodes   []int  `json:"successCodes"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	State          State  `json:"state"`
	LastChecked    int64  `json:"lastChecked,omitempty"`
}

// Probed reports whether the check has a baseline from an earlier probe.
func (c Check) Probed() bool { return c.LastChecked > 0 }

// Target is the absolute URL the check points at.
func (c Check) Target() string { return c.Protocol + "://" + c.URL }

func (c Check) Accepts(code int) bool { return slices.Contains(c.SuccessCodes, code) }

type User struct {
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Phone          string   `json:"phone"`
	HashedPassword string   `json:"hashedPassword"`
	TOSAgreement   bool     `json:"tosAgreement"`
	Checks         []string `json:"checks,omitempty"`
}

type Token struct {
	ID      string `json:"id"`
	Phone   string `json:"phone"`
	Expires int64  `json:"expires"` // unix ms
}

// NewID returns a random lowercase hex id of IDLength characters.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:IDLength]
}
