package neighbor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGraph_StatusFor_UnknownByDefault(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	req.Equal(StatusUnknown, g.StatusFor(1, 2))
	req.Equal(StatusUnknown, g.StatusFor(2, 1))
}

func TestGraph_SendRequest_ViewsAreMirrorImages(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	status, err := g.SendRequest(1, 2)

	req.NoError(err)
	req.Equal(StatusRequestSent, status)
	req.Equal(StatusRequestSent, g.StatusFor(1, 2))
	req.Equal(StatusRequestReceived, g.StatusFor(2, 1))
}

func TestGraph_SendRequest_DuplicateIsNoOp(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	_, err := g.SendRequest(1, 2)
	req.NoError(err)
	status, err := g.SendRequest(1, 2)

	req.NoError(err)
	req.Equal(StatusRequestSent, status)
	req.Equal(StatusRequestReceived, g.StatusFor(2, 1))
}

func TestGraph_SendRequest_ToSelf_Fails(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	_, err := g.SendRequest(1, 1)
	req.ErrorIs(err, ErrInvalidTransition)
}

func TestGraph_MutualRequests_ResolveToNeighbor(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	// Given A has an open request toward B
	_, err := g.SendRequest(1, 2)
	req.NoError(err)

	// When B sends one back
	status, err := g.SendRequest(2, 1)

	// Then both are neighbors, nobody is left waiting on an accept
	req.NoError(err)
	req.Equal(StatusNeighbor, status)
	req.Equal(StatusNeighbor, g.StatusFor(1, 2))
	req.Equal(StatusNeighbor, g.StatusFor(2, 1))
}

func TestGraph_AcceptRequest(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	_, err := g.SendRequest(1, 2)
	req.NoError(err)

	status, err := g.AcceptRequest(2, 1)

	req.NoError(err)
	req.Equal(StatusNeighbor, status)
	req.Equal(StatusNeighbor, g.StatusFor(1, 2))
	req.Equal(StatusNeighbor, g.StatusFor(2, 1))
}

func TestGraph_AcceptRequest_WithoutPendingRequest_Fails(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	// No record at all
	_, err := g.AcceptRequest(2, 1)
	req.ErrorIs(err, ErrInvalidTransition)

	// The sender cannot accept their own request
	_, err = g.SendRequest(1, 2)
	req.NoError(err)
	_, err = g.AcceptRequest(1, 2)
	req.ErrorIs(err, ErrInvalidTransition)

	// Already neighbors
	_, err = g.AcceptRequest(2, 1)
	req.NoError(err)
	_, err = g.AcceptRequest(2, 1)
	req.ErrorIs(err, ErrInvalidTransition)
}

func TestGraph_CancelOrReject_CollapsesToUnknown(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	// Cancel by the sender
	_, err := g.SendRequest(1, 2)
	req.NoError(err)
	status, err := g.CancelOrReject(1, 2)
	req.NoError(err)
	req.Equal(StatusUnknown, status)
	req.Equal(StatusUnknown, g.StatusFor(2, 1))

	// Reject by the receiver
	_, err = g.SendRequest(1, 2)
	req.NoError(err)
	status, err = g.CancelOrReject(2, 1)
	req.NoError(err)
	req.Equal(StatusUnknown, status)
	req.Equal(StatusUnknown, g.StatusFor(1, 2))
}

func TestGraph_CancelOrReject_InvalidStates(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	// Nothing pending
	_, err := g.CancelOrReject(1, 2)
	req.ErrorIs(err, ErrInvalidTransition)

	// Neighbors must use RemoveNeighbor
	_, err = g.SendRequest(1, 2)
	req.NoError(err)
	_, err = g.AcceptRequest(2, 1)
	req.NoError(err)
	_, err = g.CancelOrReject(1, 2)
	req.ErrorIs(err, ErrInvalidTransition)
}

func TestGraph_RejectedRequest_CanBeSentAgain(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	// Given A's request was rejected by B
	_, err := g.SendRequest(1, 2)
	req.NoError(err)
	_, err = g.CancelOrReject(2, 1)
	req.NoError(err)

	// When A sends again
	status, err := g.SendRequest(1, 2)

	// Then the new request is not blocked by the prior history
	req.NoError(err)
	req.Equal(StatusRequestSent, status)
	req.Equal(StatusRequestReceived, g.StatusFor(2, 1))
}

func TestGraph_RemoveNeighbor(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	_, err := g.RemoveNeighbor(1, 2)
	req.ErrorIs(err, ErrInvalidTransition)

	_, err = g.SendRequest(1, 2)
	req.NoError(err)
	_, err = g.RemoveNeighbor(1, 2)
	req.ErrorIs(err, ErrInvalidTransition)

	_, err = g.AcceptRequest(2, 1)
	req.NoError(err)
	status, err := g.RemoveNeighbor(2, 1)
	req.NoError(err)
	req.Equal(StatusUnknown, status)
	req.Equal(StatusUnknown, g.StatusFor(1, 2))
}

func TestGraph_Listings(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	// User 1: neighbor of 2, open request toward 3, open request from 4
	_, err := g.SendRequest(1, 2)
	req.NoError(err)
	_, err = g.AcceptRequest(2, 1)
	req.NoError(err)
	_, err = g.SendRequest(1, 3)
	req.NoError(err)
	_, err = g.SendRequest(4, 1)
	req.NoError(err)

	req.Equal([]uint{2}, g.ListNeighbors(1))
	req.Equal([]uint{3}, g.ListSentRequests(1))
	req.Equal([]uint{4}, g.ListReceivedRequests(1))

	// And the other sides agree
	req.Equal([]uint{1}, g.ListNeighbors(2))
	req.Equal([]uint{1}, g.ListReceivedRequests(3))
	req.Equal([]uint{1}, g.ListSentRequests(4))
}

func TestGraph_SimultaneousMutualRequests_BothEndAtNeighbor(t *testing.T) {
	req := require.New(t)

	// Run the race repeatedly; either interleaving must land on neighbor.
	for i := 0; i < 200; i++ {
		g := NewGraph()
		errs := make(chan error, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := g.SendRequest(1, 2)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := g.SendRequest(2, 1)
			errs <- err
		}()
		wg.Wait()
		close(errs)
		for err := range errs {
			req.NoError(err)
		}

		req.Equal(StatusNeighbor, g.StatusFor(1, 2))
		req.Equal(StatusNeighbor, g.StatusFor(2, 1))
	}
}

func TestGraph_ConcurrentUnrelatedPairs(t *testing.T) {
	req := require.New(t)
	g := NewGraph()

	errs := make(chan error, 100)
	var wg sync.WaitGroup
	for u := uint(1); u <= 100; u++ {
		wg.Add(1)
		go func(u uint) {
			defer wg.Done()
			_, err := g.SendRequest(u, u+1000)
			errs <- err
		}(u)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	for u := uint(1); u <= 100; u++ {
		req.Equal(StatusRequestSent, g.StatusFor(u, u+1000))
		req.Equal(StatusRequestReceived, g.StatusFor(u+1000, u))
	}
}
