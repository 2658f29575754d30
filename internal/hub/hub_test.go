package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesTownSubscribersOnly(t *testing.T) {
	req := require.New(t)
	h := NewHub()

	inTown := make(Client, 1)
	elsewhere := make(Client, 1)
	h.Subscribe("town-a", inTown)
	h.Subscribe("town-b", elsewhere)

	h.Broadcast("town-a", Event{Type: "player_joined", Payload: "alice"})

	msg := <-inTown
	req.JSONEq(`{"type":"player_joined","payload":"alice"}`, string(msg))
	req.Empty(elsewhere)
}

func TestHub_Unsubscribe_ClosesClient(t *testing.T) {
	req := require.New(t)
	h := NewHub()

	client := make(Client, 1)
	h.Subscribe("town-a", client)
	h.Unsubscribe("town-a", client)

	_, open := <-client
	req.False(open)

	// A second unsubscribe is a no-op
	h.Unsubscribe("town-a", client)

	// Broadcasting to the now-empty town does nothing
	h.Broadcast("town-a", Event{Type: "player_left", Payload: "alice"})
}
