package validation

import (
	"testing"

	apperrors "coaching-notifier/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clockSchema = `{
  "type": "object",
  "required": ["time"],
  "properties": {
    "time": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"}
  },
  "additionalProperties": false
}`

func TestSchema_Validate(t *testing.T) {
	s := MustCompile("clock", clockSchema)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"time":"14:00"}`},
		{name: "missing field", body: `{}`, wantErr: "time is required"},
		{name: "bad pattern", body: `{"time":"2pm"}`, wantErr: "Does not match pattern"},
		{name: "extra field", body: `{"time":"09:30","tz":"UTC"}`, wantErr: "Additional property tz"},
		{name: "not json", body: `{`, wantErr: "malformed JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate([]byte(tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeRequestInvalid, apperrors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)
}
