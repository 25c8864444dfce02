// Package audit records one structured log entry per CLI command invocation:
// the command name, which config file was loaded, and the operational
// environment. API keys appear only as "set" or "unset", never as values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// auditEntry names one env var included in the audit entry. Secret entries
// are redacted to presence/absence.
type auditEntry struct {
	key    string
	secret bool
}

// auditKeys is the ordered list of env vars recorded on every command start.
var auditKeys = []auditEntry{
	{"WATSONX_URL", false},
	{"WATSONX_API_KEY", true},
	{"WATSONX_PROJECT_ID", false},
	{"WATSONX_MODEL_ID", false},
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_API_KEY", true},
	{"OLLAMA_HOST", false},
	{"INDEX_BACKEND", false},
	{"INDEX_PATH", false},
	{"INDEX_COLLECTION", false},
	{"QDRANT_HOST", false},
	{"QDRANT_PORT", false},
	{"QDRANT_API_KEY", true},
	{"CATALOG_DB", false},
	{"HELPDESK_API_KEY", true},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
}

// secretEnvKeys mirrors the secret flags above for SanitiseKey lookups.
var secretEnvKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, e := range auditKeys {
		if e.secret {
			m[e.key] = true
		}
	}
	return m
}()

// LogCommandStart emits the audit entry for a starting CLI command.
// configPath is the YAML file that was loaded, or "" when none was found.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)

	for _, e := range auditKeys {
		attrs = append(attrs, slog.String(e.key, SanitiseKey(e.key, os.Getenv(e.key))))
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey renders an env var value for logging: secret keys become
// "set"/"unset", others pass through with "" shown as "unset".
func SanitiseKey(key, value string) string {
	if secretEnvKeys[key] {
		if value != "" {
			return "set"
		}
		return "unset"
	}
	if value == "" {
		return "unset"
	}
	return value
}

// sanitiseConfigPath shortens a home-relative path to ~ and renders "" as
// "none".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
