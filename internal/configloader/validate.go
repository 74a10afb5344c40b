package configloader

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yaklabco/passthrough/internal/logging"
	"github.com/yaklabco/passthrough/pkg/config"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Field is the path to the invalid field (e.g., "workers.job_timeout").
	Field string

	// Value is the invalid value.
	Value any

	// Message describes the validation error.
	Message string

	// FilePath is the config file containing the error (if known).
	FilePath string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var parts []string

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	if e.Field != "" {
		parts = append(parts, e.Field)
	}

	parts = append(parts, e.Message)

	return strings.Join(parts, ": ")
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	// Errors are validation failures that prevent loading.
	Errors []ValidationError

	// Warnings are non-fatal issues.
	Warnings []ValidationError
}

// Valid returns true if there are no errors.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AllMessages returns all error and warning messages combined.
func (r *ValidationResult) AllMessages() []string {
	messages := make([]string, 0, len(r.Errors)+len(r.Warnings))
	for _, e := range r.Errors {
		messages = append(messages, "error: "+e.Error())
	}
	for _, w := range r.Warnings {
		messages = append(messages, "warning: "+w.Error())
	}
	return messages
}

// Err joins every error into one, or returns nil when the result is valid.
func (r *ValidationResult) Err() error {
	switch len(r.Errors) {
	case 0:
		return nil
	case 1:
		return &r.Errors[0]
	}

	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return &ValidationError{
		Message: fmt.Sprintf("%d problems: %s", len(msgs), strings.Join(msgs, "; ")),
	}
}

func (r *ValidationResult) fail(field string, value any, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	})
}

// Validate checks a configuration for errors and warnings.
func Validate(cfg *config.Config) *ValidationResult {
	result := &ValidationResult{}
	if cfg == nil {
		return result
	}

	validateOrigin(cfg.Proxy.Origin, result)

	workers := cfg.Workers
	if workers.Count < 0 {
		result.fail("workers.count", workers.Count, "workers must be >= 0 (0 means one per CPU)")
	}
	if workers.JobTimeout <= 0 {
		result.fail("workers.job_timeout", workers.JobTimeout, "job timeout must be positive")
	}
	if workers.TickInterval <= 0 {
		result.fail("workers.tick_interval", workers.TickInterval, "tick interval must be positive")
	} else if workers.JobTimeout > 0 && workers.TickInterval >= workers.JobTimeout {
		result.fail("workers.tick_interval", workers.TickInterval,
			"tick interval %s must be shorter than the job timeout %s", workers.TickInterval, workers.JobTimeout)
	}
	if workers.ChunkSize <= 0 {
		result.fail("workers.chunk_size", workers.ChunkSize, "chunk size must be positive")
	}

	if cfg.Rewrite.MaxBodyBytes <= 0 {
		result.fail("rewrite.max_body_bytes", cfg.Rewrite.MaxBodyBytes, "body limit must be positive")
	}

	if !logging.ValidLevel(cfg.LogLevel) {
		result.fail("log_level", cfg.LogLevel,
			"invalid log level %q; must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	return result
}

func validateOrigin(origin string, result *ValidationResult) {
	parsed, err := url.Parse(origin)
	if err != nil {
		result.fail("proxy.origin", origin, "invalid origin: %v", err)
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		result.fail("proxy.origin", origin, "origin %q must use http or https", origin)
		return
	}
	if parsed.Host == "" {
		result.fail("proxy.origin", origin, "origin %q has no host", origin)
		return
	}
	if strings.Trim(parsed.Path, "/") != "" || parsed.RawQuery != "" || parsed.Fragment != "" {
		result.fail("proxy.origin", origin, "origin %q must be a scheme and host only", origin)
	}
}

// ValidateWithFile validates configuration and includes file path in errors.
func ValidateWithFile(cfg *config.Config, filePath string) *ValidationResult {
	result := Validate(cfg)

	for i := range result.Errors {
		result.Errors[i].FilePath = filePath
	}
	for i := range result.Warnings {
		result.Warnings[i].FilePath = filePath
	}

	return result
}
