package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNow_IsCurrentUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC()
	got := Clock{}.Now()
	after := time.Now().UTC()

	require.Equal(t, time.UTC, got.Location())
	require.False(t, got.Before(before))
	require.False(t, got.After(after))
}
