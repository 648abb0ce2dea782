package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	t.Parallel()

	id := GenerateID("auction")
	require.True(t, strings.HasPrefix(id, "auction-"))

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateID("bid")
		require.False(t, seen[id], "ids must not repeat")
		seen[id] = true
	}
}
