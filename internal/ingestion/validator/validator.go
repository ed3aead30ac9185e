// Package validator provides input validation for ingestion requests. It
// enforces batch size, text length and metadata constraints and returns
// per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/ingestion"
)

const (
	MaxBatchSize      = 1000
	MaxTextLength     = 1 << 20
	MaxMetadataKeys   = 64
	MaxMetadataKeyLen = 256
)

// ValidationError holds per-field validation failure messages. Fields are
// named like documents[3].text.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, field := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks the batch and every document in it and
// returns a ValidationError describing all failures.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	switch n := len(req.Documents); {
	case n == 0:
		errs["documents"] = "at least one document is required"
	case n > MaxBatchSize:
		errs["documents"] = fmt.Sprintf("at most %d documents per request", MaxBatchSize)
	}
	for i, doc := range req.Documents {
		field := fmt.Sprintf("documents[%d]", i)
		if strings.TrimSpace(doc.Text) == "" {
			errs[field+".text"] = "text is required and must not be blank"
		} else if len(doc.Text) > MaxTextLength {
			errs[field+".text"] = fmt.Sprintf("text must be at most %d bytes", MaxTextLength)
		}
		if len(doc.Metadata) > MaxMetadataKeys {
			errs[field+".metadata"] = fmt.Sprintf("at most %d metadata keys", MaxMetadataKeys)
			continue
		}
		for key := range doc.Metadata {
			if key == "" || len(key) > MaxMetadataKeyLen {
				errs[field+".metadata"] = fmt.Sprintf("metadata keys must be 1 to %d bytes", MaxMetadataKeyLen)
				break
			}
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
