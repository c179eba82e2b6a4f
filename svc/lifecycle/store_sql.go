package lifecycle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrymomot/contractflow/pkg/audit"
)

const eventColumns = `seq, id, user_id, action, resource, resource_id, result, error, request_id, metadata, hash, created_at`

// criteriaWhere renders c as a WHERE clause, empty when c matches everything.
// placeholder maps a 1-based argument index to the dialect's parameter syntax.
func criteriaWhere(c audit.Criteria, placeholder func(int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = %s", column, placeholder(len(args))))
	}

	if c.Action != "" {
		add("action", c.Action)
	}
	if c.Resource != "" {
		add("resource", c.Resource)
	}
	if c.ResourceID != "" {
		add("resource_id", c.ResourceID)
	}
	if c.UserID != "" {
		add("user_id", c.UserID)
	}
	if c.Result != "" {
		add("result", string(c.Result))
	}
	if c.AfterSeq > 0 {
		args = append(args, c.AfterSeq)
		conds = append(conds, "seq > "+placeholder(len(args)))
	}

	var b strings.Builder
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	return b.String(), args
}

func orderAndLimit(c audit.Criteria) string {
	if c.Limit > 0 {
		return fmt.Sprintf(" ORDER BY seq ASC LIMIT %d", c.Limit)
	}
	return " ORDER BY seq ASC"
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode audit metadata: %w", err)
	}
	return b, nil
}

func decodeMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode audit metadata: %w", err)
	}
	return m, nil
}
