package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{" info ", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"trace", LevelTrace, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestHasFmtVerb(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"plain message", false},
		{"value is %d", true},
		{"model %s failed", true},
		{"100%% done", false},
		{"trailing %", false},
	}

	for _, tt := range tests {
		if got := hasFmtVerb(tt.msg); got != tt.want {
			t.Errorf("hasFmtVerb(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestInitReconfigures(t *testing.T) {
	var first, second bytes.Buffer
	t.Cleanup(func() { Init(nil) })

	Init(&Config{Level: LevelInfo, Output: &first})
	L_info("before reconfigure")

	Init(&Config{Level: LevelWarn, Output: &second})
	L_info("hidden")
	L_warn("model failed", "model", "a/one")

	if !strings.Contains(first.String(), "before reconfigure") {
		t.Errorf("first logger output = %q", first.String())
	}
	out := second.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "model failed") || !strings.Contains(out, "a/one") {
		t.Errorf("warn output = %q", out)
	}
}
