package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/contractflow/pkg/audit"
)

func TestSQLiteStore_AuditTrailIsAppendOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenSQLite(ctx, "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Store(ctx, audit.Event{
		ID:         "evt-1",
		Action:     ActionTransition,
		Resource:   string(NDA),
		ResourceID: "n-1",
		Result:     audit.ResultSuccess,
		CreatedAt:  time.Now(),
	}))

	_, err = s.db.ExecContext(ctx, `UPDATE audit_events SET result = 'failure' WHERE id = 'evt-1'`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE id = 'evt-1'`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	n, err := s.Count(ctx, audit.Criteria{ResourceID: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCriteriaWhere(t *testing.T) {
	t.Parallel()

	where, args := criteriaWhere(audit.Criteria{}, pgPlaceholder)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = criteriaWhere(audit.Criteria{
		Action:     ActionTransition,
		ResourceID: "pc-1",
		AfterSeq:   10,
	}, pgPlaceholder)
	assert.Equal(t, " WHERE action = $1 AND resource_id = $2 AND seq > $3", where)
	assert.Equal(t, []any{ActionTransition, "pc-1", int64(10)}, args)

	assert.Equal(t, " ORDER BY seq ASC LIMIT 5", orderAndLimit(audit.Criteria{Limit: 5}))
	assert.Equal(t, " ORDER BY seq ASC", orderAndLimit(audit.Criteria{}))
}
