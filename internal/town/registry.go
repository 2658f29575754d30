package town

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned when the referenced town does not exist.
	ErrNotFound = errors.New("town not found")
	// ErrUnauthorized is returned when the supplied town password does not match.
	ErrUnauthorized = errors.New("town password mismatch")
	// ErrTownFull is returned when a reservation is attempted at capacity.
	ErrTownFull = errors.New("town is at maximum occupancy")
)

// SlotHandle identifies one reserved unit of town occupancy. The caller must
// either keep it (the slot stays counted) or release it on any downstream
// failure.
type SlotHandle string

// Info is a read-only snapshot of a town.
type Info struct {
	TownID           string
	FriendlyName     string
	IsPubliclyListed bool
	CurrentOccupancy int
	MaximumOccupancy int
}

type record struct {
	mu               sync.Mutex
	friendlyName     string
	passwordHash     []byte
	isPubliclyListed bool
	capacity         int
	slots            map[SlotHandle]struct{}
}

func (t *record) snapshot(id string) Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{
		TownID:           id,
		FriendlyName:     t.friendlyName,
		IsPubliclyListed: t.isPubliclyListed,
		CurrentOccupancy: len(t.slots),
		MaximumOccupancy: t.capacity,
	}
}

func (t *record) authorize(password string) error {
	t.mu.Lock()
	hash := t.passwordHash
	t.mu.Unlock()
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ErrUnauthorized
	}
	return nil
}

// Registry owns town lifecycle and occupancy. Occupancy is tracked as a set
// of slot handles so that the occupancy count can never drift from the number
// of outstanding reservations.
type Registry struct {
	mu       sync.RWMutex
	towns    map[string]*record
	capacity int
}

// NewRegistry creates a registry whose towns all share the given capacity.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		towns:    make(map[string]*record),
		capacity: capacity,
	}
}

// Create registers a new town and returns its ID together with the plaintext
// mutation password. The password is only ever returned here; the registry
// keeps a bcrypt hash.
func (r *Registry) Create(friendlyName string, isPubliclyListed bool) (string, string, error) {
	password := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	townID := uuid.NewString()
	t := &record{
		friendlyName:     friendlyName,
		passwordHash:     hash,
		isPubliclyListed: isPubliclyListed,
		capacity:         r.capacity,
		slots:            make(map[SlotHandle]struct{}),
	}

	r.mu.Lock()
	r.towns[townID] = t
	r.mu.Unlock()

	return townID, password, nil
}

// List returns snapshots of all publicly listed towns, in no particular
// order. Callers decide on presentation ordering.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []Info
	for id, t := range r.towns {
		info := t.snapshot(id)
		if info.IsPubliclyListed {
			infos = append(infos, info)
		}
	}
	return infos
}

// Info returns a snapshot of a single town.
func (r *Registry) Info(townID string) (Info, error) {
	r.mu.RLock()
	t, ok := r.towns[townID]
	r.mu.RUnlock()
	if !ok {
		return Info{}, ErrNotFound
	}
	return t.snapshot(townID), nil
}

// Update changes the friendly name and/or listing visibility of a town. A nil
// field means "leave unchanged"; an explicit zero value is applied as given.
func (r *Registry) Update(townID, password string, friendlyName *string, isPubliclyListed *bool) error {
	r.mu.RLock()
	t, ok := r.towns[townID]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	if err := t.authorize(password); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if friendlyName != nil {
		t.friendlyName = *friendlyName
	}
	if isPubliclyListed != nil {
		t.isPubliclyListed = *isPubliclyListed
	}
	return nil
}

// Delete removes a town. Callers owning sessions bound to the town are
// responsible for evicting them once the delete succeeds.
func (r *Registry) Delete(townID, password string) error {
	r.mu.RLock()
	t, ok := r.towns[townID]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	if err := t.authorize(password); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.towns, townID)
	r.mu.Unlock()
	return nil
}

// ReserveSlot atomically claims one unit of occupancy. The check and the
// increment happen under the town's mutex, so concurrent reservations can
// never oversubscribe the last slot.
func (r *Registry) ReserveSlot(townID string) (SlotHandle, error) {
	r.mu.RLock()
	t, ok := r.towns[townID]
	r.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.slots) >= t.capacity {
		return "", ErrTownFull
	}
	handle := SlotHandle(uuid.NewString())
	t.slots[handle] = struct{}{}
	return handle, nil
}

// ReleaseSlot returns a reserved slot. Releasing an unknown handle, or a slot
// on a town that no longer exists, is a no-op so retry paths stay safe.
func (r *Registry) ReleaseSlot(townID string, handle SlotHandle) {
	r.mu.RLock()
	t, ok := r.towns[townID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	t.mu.Lock()
	delete(t.slots, handle)
	t.mu.Unlock()
}
