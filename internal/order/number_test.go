package order_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domremont/backend/internal/order"
)

func TestNewOrderNumberFormat(t *testing.T) {
	num, err := order.NewOrderNumber()
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{13,}-[0-9A-Z]{9}$`), num)
}

func TestNewOrderNumberUniqueness(t *testing.T) {
	const n = 10000

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		num, err := order.NewOrderNumber()
		require.NoError(t, err)

		if _, ok := seen[num]; ok {
			t.Fatalf("duplicate order number after %d generations: %s", i, num)
		}
		seen[num] = struct{}{}
	}
}
