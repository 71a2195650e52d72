package receipt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFailedMatchesRevertReasonPresence(t *testing.T) {
	ok := Receipt{}
	require.False(t, ok.Failed())

	reason := "REVERTED"
	bad := Receipt{RevertReason: &reason}
	require.True(t, bad.Failed())
}

func TestSortEventsByOrder(t *testing.T) {
	events := []Event{{Order: 3}, {Order: 1}, {Order: 2}, {Order: 0}}
	SortEventsByOrder(events)
	for i, e := range events {
		require.Equal(t, i, e.Order)
	}
}
