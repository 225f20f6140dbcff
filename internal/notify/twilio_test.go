package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTwilio_PostsForm(t *testing.T) {
	var (
		path, user, pass string
		form             map[string]string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		user, pass, _ = r.BasicAuth()
		_ = r.ParseForm()
		form = map[string]string{"From": r.PostForm.Get("From"), "To": r.PostForm.Get("To"), "Body": r.PostForm.Get("Body")}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	tw := NewTwilio("AC123", "secret", "+15550000000")
	tw.BaseURL = ts.URL
	if err := tw.Send(context.Background(), " 5551234567 ", "Alert: Your check for GET http://x is currently down"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected path %q", path)
	}
	if user != "AC123" || pass != "secret" {
		t.Fatalf("basic auth not set: %q/%q", user, pass)
	}
	if form["To"] != "5551234567" || form["From"] != "+15550000000" || !strings.Contains(form["Body"], "down") {
		t.Fatalf("unexpected form %v", form)
	}
}

func TestTwilio_Rejects(t *testing.T) {
	if NewTwilio("", "x", "y") != nil {
		t.Fatal("missing sid should disable twilio")
	}
	tw := NewTwilio("AC1", "x", "y")
	if err := tw.Send(context.Background(), "", "hi"); err == nil {
		t.Fatal("empty recipient must fail")
	}
	if err := tw.Send(context.Background(), "555", strings.Repeat("a", MaxSMSLength+1)); err == nil {
		t.Fatal("oversized body must fail")
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bad number"}`, http.StatusBadRequest)
	}))
	defer ts.Close()
	tw.BaseURL = ts.URL
	if err := tw.Send(context.Background(), "555", "hi"); err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("want status error, got %v", err)
	}
}
