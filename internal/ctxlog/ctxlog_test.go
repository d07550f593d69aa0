package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_FallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Same(t, slog.Default(), logger)
}

func TestWith_AnnotatesChildLogger(t *testing.T) {
	// --- Arrange ---
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), base)

	// --- Act ---
	ctx, child := With(ctx, "stage", "TokenDeployed")
	FromContext(ctx).Info("Deploying.")

	// --- Assert ---
	assert.Same(t, child, FromContext(ctx))
	assert.Contains(t, buf.String(), "stage=TokenDeployed")
	assert.Contains(t, buf.String(), "msg=Deploying.")
}
