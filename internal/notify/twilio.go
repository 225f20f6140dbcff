package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPI = "https://api.twilio.com"

// MaxSMSLength is the longest body Twilio accepts for one message.
const MaxSMSLength = 1600

// Twilio sends SMS through the Messages API.
type Twilio struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Client     *http.Client
}

func NewTwilio(accountSID, authToken, from string) *Twilio {
	if accountSID == "" || authToken == "" || from == "" {
		return nil
	}
	return &Twilio{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		BaseURL:    twilioAPI,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Twilio) Send(ctx context.Context, to, text string) error {
	if t == nil {
		return errors.New("twilio disabled")
	}
	to = strings.TrimSpace(to)
	text = strings.TrimSpace(text)
	if to == "" {
		return errors.New("twilio: empty recipient")
	}
	if text == "" || len(text) > MaxSMSLength {
		return fmt.Errorf("twilio: message length %d out of range", len(text))
	}

	form := url.Values{}
	form.Set("From", t.From)
	form.Set("To", to)
	form.Set("Body", text)

	endpoint := strings.TrimRight(t.BaseURL, "/") + "/2010-04-01/Accounts/" + url.PathEscape(t.AccountSID) + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
