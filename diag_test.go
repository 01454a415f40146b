package dirfile

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNopLoggerDiscardsOutput(t *testing.T) {
	l := nopLogger()
	assert.Equal(t, zerolog.Disabled, l.GetLevel())
	l.Info().Msg("should not panic or write anywhere")
}

func TestComponentLoggerTagsField(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	tagged := componentLogger(base, "detect")
	tagged.Info().Msg("tagged entry")
	assert.Contains(t, buf.String(), `"component":"detect"`)
}
