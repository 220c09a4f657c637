package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	log := zap.NewNop()
	ctx := WithContext(context.Background(), log)

	assert.Same(t, log, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	log := FromContext(context.Background())

	require.NotNil(t, log)
	assert.NotPanics(t, func() {
		log.Info("discarded")
	})
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, enriched := WithRequestID(context.Background(), zap.New(core), "req-42")

	assert.Equal(t, "req-42", GetRequestID(ctx))
	assert.Same(t, enriched, FromContext(ctx))

	enriched.Info("submitted")
	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "req-42", logs[0].ContextMap()["request_id"])
}

func TestWithBranchID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, enriched := WithBranchID(context.Background(), zap.New(core), "branch-nairobi")

	assert.Equal(t, "branch-nairobi", GetBranchID(ctx))

	enriched.Info("scoped query")
	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "branch-nairobi", logs[0].ContextMap()["branch_id"])
}

func TestWithUserID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, enriched := WithUserID(context.Background(), zap.New(core), "officer-7")

	assert.Equal(t, "officer-7", GetUserID(ctx))

	enriched.Info("decision recorded")
	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "officer-7", logs[0].ContextMap()["user_id"])
}

func TestCorrelationFieldsStack(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx := context.Background()
	ctx, _ = WithRequestID(ctx, zap.New(core), "req-1")
	ctx, _ = WithBranchID(ctx, FromContext(ctx), "branch-2")
	ctx, log := WithUserID(ctx, FromContext(ctx), "user-3")

	log.Info("fully correlated")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "branch-2", fields["branch_id"])
	assert.Equal(t, "user-3", fields["user_id"])
}

func TestGetters_Missing(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetBranchID(ctx))
	assert.Empty(t, GetUserID(ctx))
}

func TestGetters_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey, 12345)

	assert.Empty(t, GetRequestID(ctx))
}
