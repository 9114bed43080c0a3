package order

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableOrdersQueryOrdering(t *testing.T) {
	builder, _ := availableOrdersQuery("Казань")

	sql, args, err := builder.ToSql()
	require.NoError(t, err)

	// Сортировка не должна полагаться на алфавитный порядок значений enum.
	assert.NotContains(t, sql, "urgency DESC")
	assert.Contains(t, sql, "CASE WHEN urgency = 'URGENT' THEN 0 ELSE 1 END")

	casePos := strings.Index(sql, "CASE WHEN urgency")
	createdPos := strings.Index(sql, "created_at ASC")
	require.NotEqual(t, -1, createdPos)
	assert.Less(t, casePos, createdPos)

	assert.Contains(t, sql, "master_id IS NULL")
	assert.Contains(t, args, "Казань")
}
