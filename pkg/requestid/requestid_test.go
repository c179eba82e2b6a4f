package requestid_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/contractflow/pkg/requestid"
)

func TestEnsure(t *testing.T) {
	t.Parallel()

	t.Run("keeps a valid id", func(t *testing.T) {
		t.Parallel()
		ctx := requestid.WithContext(context.Background(), "req_123-abc")
		got, id := requestid.Ensure(ctx)
		assert.Equal(t, "req_123-abc", id)
		assert.Equal(t, ctx, got)
	})

	t.Run("mints an id when missing", func(t *testing.T) {
		t.Parallel()
		ctx, id := requestid.Ensure(context.Background())
		require.NotEmpty(t, id)
		assert.Equal(t, id, requestid.FromContext(ctx))
	})

	t.Run("replaces an invalid id", func(t *testing.T) {
		t.Parallel()
		ctx := requestid.WithContext(context.Background(), "bad id\n")
		_, id := requestid.Ensure(ctx)
		assert.NotEqual(t, "bad id\n", id)
		assert.True(t, requestid.Valid(id))
	})
}

func TestValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want bool
	}{
		{"abc", true},
		{"a1_b2-c3", true},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{strings.Repeat("a", 128), true},
		{strings.Repeat("a", 129), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, requestid.Valid(tt.id), tt.id)
	}
}

func TestExtractors(t *testing.T) {
	t.Parallel()

	_, ok := requestid.LoggerExtractor()(context.Background())
	assert.False(t, ok)
	_, ok = requestid.AuditExtractor()(context.Background())
	assert.False(t, ok)

	ctx := requestid.WithContext(context.Background(), "r-1")
	attr, ok := requestid.LoggerExtractor()(ctx)
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "r-1", attr.Value.String())

	id, ok := requestid.AuditExtractor()(ctx)
	require.True(t, ok)
	assert.Equal(t, "r-1", id)

	assert.Empty(t, requestid.FromContext(nil)) //nolint:staticcheck
}
