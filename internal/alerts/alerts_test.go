package alerts

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"polybot-server/config"
)

func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"buy", "buy", true},
		{"BUY", "buy", true},
		{"long", "buy", true},
		{" Long ", "buy", true},
		{"entry_long", "buy", true},
		{"sell", "sell", true},
		{"short", "sell", true},
		{"open_short", "sell", true},
		{"close", "close", true},
		{"exit", "close", true},
		{"flat", "close", true},
		{"exit_short", "close", true},
		{"hodl", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeAction(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeAction(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// Validation failures happen before any persistence, so a nil repo is
// fine for these paths.
func newValidationService(secret string) *Service {
	return NewService(config.WebhookConfig{SharedSecret: secret}, nil, nil)
}

func TestIngestRejectsBadSecret(t *testing.T) {
	s := newValidationService("topsecret")

	payload := []byte(`{"secret":"wrong","symbol":"BTCUSD","action":"buy"}`)
	if _, err := s.Ingest(context.Background(), payload); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("err = %v, want ErrInvalidSecret", err)
	}
}

func TestIngestRejectsMissingSymbol(t *testing.T) {
	s := newValidationService("topsecret")

	payload := []byte(`{"secret":"topsecret","action":"buy"}`)
	if _, err := s.Ingest(context.Background(), payload); !errors.Is(err, ErrMissingSymbol) {
		t.Fatalf("err = %v, want ErrMissingSymbol", err)
	}
}

func TestIngestRejectsUnknownAction(t *testing.T) {
	s := newValidationService("topsecret")

	payload := []byte(`{"secret":"topsecret","symbol":"BTCUSD","action":"moon"}`)
	if _, err := s.Ingest(context.Background(), payload); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	s := newValidationService("")

	if _, err := s.Ingest(context.Background(), []byte("not json")); !errors.Is(err, ErrMalformedAlert) {
		t.Fatalf("err = %v, want ErrMalformedAlert", err)
	}
}

func TestIngestRejectsOversizedPayload(t *testing.T) {
	s := newValidationService("")

	payload := bytes.Repeat([]byte("a"), MaxPayloadBytes+1)
	if _, err := s.Ingest(context.Background(), payload); !errors.Is(err, ErrPayloadTooBig) {
		t.Fatalf("err = %v, want ErrPayloadTooBig", err)
	}
}
