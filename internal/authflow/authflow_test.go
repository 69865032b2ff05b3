package authflow

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startFlow(t *testing.T) *Flow {
	t.Helper()
	f := New(nil)
	if err := f.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func callbackURL(f *Flow, token, session string) string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback?token=%s&session=%s", f.Port(), token, session)
}

func TestWaitReceivesToken(t *testing.T) {
	f := startFlow(t)

	go func() {
		resp, err := http.Get(callbackURL(f, "clausi_tok_123", f.Session()))
		if err != nil {
			return
		}
		defer resp.Body.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	token, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if token != "clausi_tok_123" {
		t.Fatalf("token = %q", token)
	}
}

func TestCallbackRejectsWrongSession(t *testing.T) {
	f := startFlow(t)

	resp, err := http.Get(callbackURL(f, "stolen", "someone-elses-session"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); err == nil {
		t.Fatal("Wait accepted a rejected callback")
	}
}

func TestCallbackRejectsMissingToken(t *testing.T) {
	f := startFlow(t)

	resp, err := http.Get(callbackURL(f, "", f.Session()))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWaitTimesOut(t *testing.T) {
	f := startFlow(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("want timeout error, got %v", err)
	}
}

func TestAuthURLCarriesSessionAndPort(t *testing.T) {
	f := startFlow(t)

	url := f.AuthURL("https://api.clausi.ai/")
	want := fmt.Sprintf("https://api.clausi.ai/cli-auth?session=%s&port=%d", f.Session(), f.Port())
	if url != want {
		t.Fatalf("AuthURL = %q, want %q", url, want)
	}
}
