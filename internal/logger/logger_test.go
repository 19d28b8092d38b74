package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker"} {
		if _, err := NewLogger(env); err != nil {
			t.Errorf("%s: %v", env, err)
		}
	}
	if _, err := NewLogger("staging"); err == nil {
		t.Error("expected error for unknown env")
	}
	if _, err := NewLogger("local", "loud"); err == nil {
		t.Error("expected error for bad level")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}
	l := zap.NewExample()
	if FromContext(ContextWithLogger(context.Background(), l)) != l {
		t.Error("logger not round-tripped")
	}
}

func TestTruncateForLog(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefgh", 3, "abc..."},
		{"привет мир", 6, "привет..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := TruncateForLog(tt.in, tt.limit); got != tt.want {
			t.Errorf("TruncateForLog(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestHashAPIKey(t *testing.T) {
	if HashAPIKey("") != "none" {
		t.Error("empty key should hash to none")
	}
	got := HashAPIKey("local-dev-key")
	if len(got) != 8 {
		t.Fatalf("len = %d", len(got))
	}
	if got != HashAPIKey("local-dev-key") {
		t.Error("hash is not stable")
	}
	if got == HashAPIKey("other-key") {
		t.Error("different keys collided")
	}
}
