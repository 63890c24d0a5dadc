package uuid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIDUniqueAndOrdered(t *testing.T) {
	gen := NewGenerator()

	first, err := gen.NewID()
	require.NoError(t, err)
	second, err := gen.NewID()
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Len(t, first, 36)
	// V7 encodes a millisecond timestamp in the leading bits, so IDs from
	// the same process sort in creation order.
	require.LessOrEqual(t, first[:8], second[:8])
}
