package presence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndex_RecordAndLookup(t *testing.T) {
	req := require.New(t)
	idx := NewIndex()

	idx.Record(1, "town-a")
	idx.Record(2, "town-a")
	idx.Record(3, "town-b")

	townID, ok := idx.TownOf(1)
	req.True(ok)
	req.Equal("town-a", townID)

	req.Equal([]uint{1, 2}, idx.UsersIn("town-a"))
	req.Equal([]uint{3}, idx.UsersIn("town-b"))
	req.Empty(idx.UsersIn("town-c"))
}

func TestIndex_UserIsInAtMostOneTown(t *testing.T) {
	req := require.New(t)
	idx := NewIndex()

	idx.Record(1, "town-a")
	idx.Record(1, "town-b")

	townID, ok := idx.TownOf(1)
	req.True(ok)
	req.Equal("town-b", townID)
	req.Empty(idx.UsersIn("town-a"))
	req.Equal([]uint{1}, idx.UsersIn("town-b"))
}

func TestIndex_Remove(t *testing.T) {
	req := require.New(t)
	idx := NewIndex()

	idx.Record(1, "town-a")
	idx.Remove(1)

	_, ok := idx.TownOf(1)
	req.False(ok)
	req.Empty(idx.UsersIn("town-a"))

	// Removing an absent user is a no-op
	idx.Remove(1)
	idx.Remove(42)
}
