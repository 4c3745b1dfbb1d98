package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllReturnsEightOrderedPackages(t *testing.T) {
	all := All()
	require.Len(t, all, 8)

	wantIDs := []string{
		"package_2h", "package_4h", "package_8h", "package_12h",
		"package_15h", "package_18h", "package_20h", "package_24h",
	}
	for i, p := range all {
		assert.Equal(t, wantIDs[i], p.ID)
	}

	// Durations strictly increase in menu order.
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Hours, all[i-1].Hours)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	first := All()
	first[0].Label = "mutated"
	assert.Equal(t, "2 hours | 0.3 SOL", All()[0].Label)
}

func TestFind(t *testing.T) {
	p, ok := Find("package_8h")
	require.True(t, ok)
	assert.Equal(t, "8 hours | 1.4 SOL", p.Label)
	assert.Equal(t, 8, p.Hours)

	p, ok = Find("package_12h")
	require.True(t, ok)
	assert.Equal(t, "12 hours | 2 SOL", p.Label)

	_, ok = Find("package_99h")
	assert.False(t, ok)

	_, ok = Find("")
	assert.False(t, ok)
}
