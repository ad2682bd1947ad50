// Package redact strips credentials from change set content before it reaches a model.
package redact

import (
	"path/filepath"
	"regexp"
	"strings"
)

const Placeholder = "[REDACTED]"

// DefaultPathPatterns are files whose whole diff is withheld.
var DefaultPathPatterns = []string{"**/.env", "**/.env.*", "**/*.pem", "**/*.key", "**/*secrets*", "**/id_rsa*"}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
	// Connection strings with inline credentials.
	regexp.MustCompile(`(?i)(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@`),
}

// Secrets replaces every detected secret in text with Placeholder.
func Secrets(text string) string {
	for _, pat := range secretPatterns {
		text = pat.ReplaceAllString(text, Placeholder)
	}
	return text
}

func MatchPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return true
		}
		if trimmed := strings.TrimPrefix(pattern, "**/"); trimmed != pattern {
			if ok, err := filepath.Match(trimmed, filepath.Base(path)); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// Content withholds the whole content of files matching patterns and scrubs the rest.
func Content(content, path string, patterns []string) string {
	if MatchPath(path, patterns) {
		return Placeholder + " (file content withheld by path policy)\n"
	}
	return Secrets(content)
}
