// Package validator enforces size and shape limits on incoming
// documents and returns per-field error details.
package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arktext/textsearch/internal/ingest"
)

const (
	maxTitleLength = 1024
	maxBodyLength  = 1048576
	maxKeyLength   = 255
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateDocument checks an incoming document request. The title is
// optional; the body must be non-blank, within the size cap, and valid
// UTF-8 so the analysis pipeline can normalize it. pipelines holds the
// deployed configuration names; a nil map skips the config check.
func ValidateDocument(req *ingest.DocumentRequest, pipelines map[string]bool) error {
	errs := make(map[string]string)

	if len(req.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d bytes", maxTitleLength)
	} else if !utf8.ValidString(req.Title) {
		errs["title"] = "title must be valid UTF-8"
	}

	if strings.TrimSpace(req.Body) == "" {
		errs["body"] = "body is required and must not be blank"
	} else if len(req.Body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", maxBodyLength)
	} else if !utf8.ValidString(req.Body) {
		errs["body"] = "body must be valid UTF-8"
	}

	if req.Config != "" && pipelines != nil && !pipelines[req.Config] {
		errs["config"] = fmt.Sprintf("unknown pipeline configuration %q", req.Config)
	}

	if len(req.IdempotencyKey) > maxKeyLength {
		errs["idempotency_key"] = fmt.Sprintf("idempotency key must be at most %d bytes", maxKeyLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
