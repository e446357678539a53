package validation

import (
	"fmt"
	"sort"
	"strings"

	apperrors "coaching-notifier/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for one request payload.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document.
func Compile(name, document string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name, document string) *Schema {
	s, err := Compile(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a raw JSON body, returning a REQUEST_INVALID StandardError
// listing every violation.
func (s *Schema) Validate(body []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperrors.NewRequestInvalidError(fmt.Sprintf("%s: malformed JSON: %v", s.name, err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	sort.Strings(msgs)
	return apperrors.NewRequestInvalidError(fmt.Sprintf("%s: %s", s.name, strings.Join(msgs, "; ")))
}
