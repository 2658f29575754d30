package presence

import (
	"sort"
	"sync"
)

// Index tracks which users are currently inside which town. It is a derived
// cache: only the session manager writes to it, on join and leave. A user is
// present in at most one town at a time.
type Index struct {
	mu     sync.RWMutex
	userTo map[uint]string
	inTown map[string]map[uint]struct{}
}

// NewIndex creates an empty presence index.
func NewIndex() *Index {
	return &Index{
		userTo: make(map[uint]string),
		inTown: make(map[string]map[uint]struct{}),
	}
}

// Record marks the user as present in the given town, displacing any previous
// presence.
func (i *Index) Record(userID uint, townID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if prev, ok := i.userTo[userID]; ok {
		i.dropLocked(userID, prev)
	}
	i.userTo[userID] = townID
	if i.inTown[townID] == nil {
		i.inTown[townID] = make(map[uint]struct{})
	}
	i.inTown[townID][userID] = struct{}{}
}

// Remove clears the user's presence. Removing an absent user is a no-op.
func (i *Index) Remove(userID uint) {
	i.mu.Lock()
	defer i.mu.Unlock()

	townID, ok := i.userTo[userID]
	if !ok {
		return
	}
	delete(i.userTo, userID)
	i.dropLocked(userID, townID)
}

func (i *Index) dropLocked(userID uint, townID string) {
	if users, ok := i.inTown[townID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(i.inTown, townID)
		}
	}
}

// TownOf reports the town the user is currently in, if any.
func (i *Index) TownOf(userID uint) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	townID, ok := i.userTo[userID]
	return townID, ok
}

// UsersIn returns the IDs of users currently in the town, in ascending order.
func (i *Index) UsersIn(townID string) []uint {
	i.mu.RLock()
	var out []uint
	for userID := range i.inTown[townID] {
		out = append(out, userID)
	}
	i.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
