package session_test

import (
	"strings"
	"testing"

	"github.com/aretw0/coachflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain", input: "hello", want: "hello"},
		{name: "keeps newlines and tabs", input: "a\nb\tc\r", want: "a\nb\tc\r"},
		{name: "strips escape and bell", input: "hi\x1b[31m\x07!", want: "hi[31m!"},
		{name: "strips null", input: "a\x00b", want: "ab"},
		{name: "invalid utf8", input: "a\xffb", wantErr: session.ErrInvalidUTF8},
		{name: "too large", input: strings.Repeat("x", 11), wantErr: session.ErrInputTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := session.SanitizeInput(tt.input, 10)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeInput_DefaultLimit(t *testing.T) {
	_, err := session.SanitizeInput(strings.Repeat("x", session.DefaultMaxInputSize), 0)
	assert.NoError(t, err)

	_, err = session.SanitizeInput(strings.Repeat("x", session.DefaultMaxInputSize+1), 0)
	assert.ErrorIs(t, err, session.ErrInputTooLarge)
}
