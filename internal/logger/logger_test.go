package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWithAddsComponent(t *testing.T) {
	prev := logger
	defer func() { logger = prev }()

	var buf bytes.Buffer
	logger = zerolog.New(&buf)

	log := With("pipeline")
	log.Info().Str("id", "c1").Msg("claimed")
	With("sweeper").Warn().Msg("stopped early")

	out := buf.String()
	assert.Contains(t, out, `"component":"pipeline"`)
	assert.Contains(t, out, `"id":"c1"`)
	assert.Contains(t, out, `"component":"sweeper"`)
	assert.Contains(t, out, `"level":"warn"`)
}
