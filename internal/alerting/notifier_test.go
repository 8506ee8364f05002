package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, "https://sepolia.etherscan.io/tx/", time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("telegram Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "https://sepolia.etherscan.io/tx/0xabcdef") {
		t.Fatalf("text should link the explorer: %q", received["text"])
	}
	if !strings.Contains(received["text"], "Value: 1.2345 ETH") {
		t.Fatalf("text should carry truncated value: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, "", time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleRecord()); err == nil {
		t.Fatal("ok=false should fail")
	}
}

func TestDiscordNotifierPostsEmbed(t *testing.T) {
	var payload discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Fatalf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(srv.URL, "https://sepolia.etherscan.io/tx/", time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("discord Notify should succeed: %v", err)
	}

	if len(payload.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(payload.Embeds))
	}
	embed := payload.Embeds[0]
	fields := make(map[string]string)
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	if fields["value"] != "**1.2345 eth**" {
		t.Fatalf("value field = %q", fields["value"])
	}
	if fields["method"] != "`swapExactETHForTokens`" {
		t.Fatalf("method field = %q", fields["method"])
	}
	if fields["transaction"] != "[0xabcdef01...23456789](https://sepolia.etherscan.io/tx/0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789)" {
		t.Fatalf("transaction field = %q", fields["transaction"])
	}
	if fields["detected"] != "<t:1704164645:R>" {
		t.Fatalf("detected field = %q", fields["detected"])
	}
	if embed.Timestamp != "2024-01-02T03:04:05Z" {
		t.Fatalf("timestamp = %q", embed.Timestamp)
	}
}

func TestDiscordNotifierStatusHandling(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
	}{
		{name: "too many requests", status: http.StatusTooManyRequests, rateLimited: true},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "bad request", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewDiscordNotifier(srv.URL, "", time.Second, testLogger()).Notify(context.Background(), sampleRecord())
			if err == nil {
				t.Fatal("non-2xx should fail")
			}
			if got := errors.Is(err, ErrRateLimited); got != tt.rateLimited {
				t.Fatalf("errors.Is(err, ErrRateLimited) = %v, want %v", got, tt.rateLimited)
			}
		})
	}
}

func TestConsoleNotifierLogsRecord(t *testing.T) {
	var buf strings.Builder
	notifier := NewConsoleNotifier(zerolog.New(&buf))

	if err := notifier.Notify(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("console Notify should never fail: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"mempool hit", "swapExactETHForTokens", "1.2345", `"path_len":2`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %q: %s", want, out)
		}
	}
}

func TestFormatWei(t *testing.T) {
	sample := sampleRecord()
	cases := map[string]string{
		"0.0000": FormatWei(nil),
		"1.2345": FormatWei(sample.EffectiveValue),
	}
	for want, got := range cases {
		if got != want {
			t.Fatalf("FormatWei = %q, want %q", got, want)
		}
	}
}
