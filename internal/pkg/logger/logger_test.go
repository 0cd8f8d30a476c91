package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: DebugLevel, Output: &buf})
	t.Cleanup(func() { Configure(Config{Level: InfoLevel, Pretty: true}) })

	Ctx(context.Background()).Info().Msg("plain")
	assert.Contains(t, buf.String(), `"message":"plain"`)
	assert.NotContains(t, buf.String(), "requestID")

	buf.Reset()
	ctx := WithContext(context.Background(), Get().With().Str("requestID", "r1").Logger())
	Ctx(ctx).Info().Msg("scoped")
	assert.Contains(t, buf.String(), `"requestID":"r1"`)
}
