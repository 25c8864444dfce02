package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// TestSanitiseKey verifies secret redaction and unset rendering.
func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key, value, want string
	}{
		{"WATSONX_API_KEY", "super-secret", "set"},
		{"WATSONX_API_KEY", "", "unset"},
		{"HELPDESK_API_KEY", "tok", "set"},
		{"WATSONX_MODEL_ID", "meta-llama/llama-3-3-70b-instruct", "meta-llama/llama-3-3-70b-instruct"},
		{"WATSONX_MODEL_ID", "", "unset"},
	}

	for _, tc := range cases {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

// TestLogCommandStart verifies that secret values never reach the log output.
func TestLogCommandStart(t *testing.T) {
	t.Setenv("WATSONX_API_KEY", "super-secret-value")
	t.Setenv("WATSONX_MODEL_ID", "meta-llama/llama-3-3-70b-instruct")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	LogCommandStart(log, "serve", "")

	out := buf.String()
	if strings.Contains(out, "super-secret-value") {
		t.Fatal("secret value leaked into audit log")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["command"] != "serve" {
		t.Errorf("command = %v", entry["command"])
	}
	if entry["config_file"] != "none" {
		t.Errorf("config_file = %v", entry["config_file"])
	}
	if entry["WATSONX_API_KEY"] != "set" {
		t.Errorf("WATSONX_API_KEY = %v", entry["WATSONX_API_KEY"])
	}
	if entry["WATSONX_MODEL_ID"] != "meta-llama/llama-3-3-70b-instruct" {
		t.Errorf("WATSONX_MODEL_ID = %v", entry["WATSONX_MODEL_ID"])
	}
}

// TestSanitiseConfigPath verifies home-directory shortening.
func TestSanitiseConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("empty path = %q", got)
	}
	if got := sanitiseConfigPath("/home/tester/.helpdesk/config.yaml"); got != "~/.helpdesk/config.yaml" {
		t.Errorf("home path = %q", got)
	}
	if got := sanitiseConfigPath("/etc/helpdesk.yaml"); got != "/etc/helpdesk.yaml" {
		t.Errorf("absolute path = %q", got)
	}
}
