package town

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Create_ReturnsIDAndPassword(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(50)

	townID, password, err := r.Create("Test Town", true)

	req.NoError(err)
	req.NotEmpty(townID)
	req.NotEmpty(password)

	info, err := r.Info(townID)
	req.NoError(err)
	req.Equal("Test Town", info.FriendlyName)
	req.True(info.IsPubliclyListed)
	req.Equal(0, info.CurrentOccupancy)
	req.Equal(50, info.MaximumOccupancy)
}

func TestRegistry_List_OnlyPubliclyListedTowns(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(50)

	publicID, _, err := r.Create("Public Town", true)
	req.NoError(err)
	_, _, err = r.Create("Private Town", false)
	req.NoError(err)

	infos := r.List()

	req.Len(infos, 1)
	req.Equal(publicID, infos[0].TownID)
}

func TestRegistry_Update_ReplacesOnlyProvidedFields(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(50)
	townID, password, err := r.Create("Old Name", true)
	req.NoError(err)

	// When only the name is updated
	newName := "New Name"
	req.NoError(r.Update(townID, password, &newName, nil))

	info, err := r.Info(townID)
	req.NoError(err)
	req.Equal("New Name", info.FriendlyName)
	req.True(info.IsPubliclyListed)

	// When only the visibility is updated, to an explicit false
	hidden := false
	req.NoError(r.Update(townID, password, nil, &hidden))

	info, err = r.Info(townID)
	req.NoError(err)
	req.Equal("New Name", info.FriendlyName)
	req.False(info.IsPubliclyListed)
}

func TestRegistry_Update_WrongPassword_LeavesTownUnchanged(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(50)
	townID, _, err := r.Create("Test Town", true)
	req.NoError(err)

	newName := "Hijacked"
	err = r.Update(townID, "wrong-password", &newName, nil)

	req.ErrorIs(err, ErrUnauthorized)

	info, err := r.Info(townID)
	req.NoError(err)
	req.Equal("Test Town", info.FriendlyName)
}

func TestRegistry_Update_UnknownTown(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(50)

	name := "whatever"
	req.ErrorIs(r.Update("no-such-town", "pw", &name, nil), ErrNotFound)
}

func TestRegistry_Delete(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(50)
	townID, password, err := r.Create("Doomed Town", true)
	req.NoError(err)

	req.ErrorIs(r.Delete(townID, "wrong-password"), ErrUnauthorized)
	req.NoError(r.Delete(townID, password))

	_, err = r.Info(townID)
	req.ErrorIs(err, ErrNotFound)
	req.ErrorIs(r.Delete(townID, password), ErrNotFound)
}

func TestRegistry_ReserveSlot_FailsAtCapacity(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(1)
	townID, _, err := r.Create("Tiny Town", true)
	req.NoError(err)

	handle, err := r.ReserveSlot(townID)
	req.NoError(err)
	req.NotEmpty(handle)

	_, err = r.ReserveSlot(townID)
	req.ErrorIs(err, ErrTownFull)

	// After release the slot becomes available again
	r.ReleaseSlot(townID, handle)
	_, err = r.ReserveSlot(townID)
	req.NoError(err)
}

func TestRegistry_ReserveSlot_UnknownTown(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(50)

	_, err := r.ReserveSlot("no-such-town")
	req.ErrorIs(err, ErrNotFound)
}

func TestRegistry_ReleaseSlot_DoubleReleaseIsNoOp(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(2)
	townID, _, err := r.Create("Test Town", true)
	req.NoError(err)

	h1, err := r.ReserveSlot(townID)
	req.NoError(err)
	_, err = r.ReserveSlot(townID)
	req.NoError(err)

	r.ReleaseSlot(townID, h1)
	r.ReleaseSlot(townID, h1)

	info, err := r.Info(townID)
	req.NoError(err)
	req.Equal(1, info.CurrentOccupancy)
}

func TestRegistry_ConcurrentReserve_NeverOversubscribes(t *testing.T) {
	req := require.New(t)
	const capacity = 5
	const callers = 50

	r := NewRegistry(capacity)
	townID, _, err := r.Create("Busy Town", true)
	req.NoError(err)

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, reserveErr := r.ReserveSlot(townID)
			results <- reserveErr
		}()
	}
	wg.Wait()
	close(results)

	succeeded, full := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			req.ErrorIs(err, ErrTownFull)
			full++
		}
	}

	req.Equal(capacity, succeeded)
	req.Equal(callers-capacity, full)

	info, err := r.Info(townID)
	req.NoError(err)
	req.Equal(capacity, info.CurrentOccupancy)
}
