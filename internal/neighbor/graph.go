package neighbor

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
)

// ErrInvalidTransition is returned when a relationship operation is attempted
// from a state that does not permit it.
var ErrInvalidTransition = errors.New("relationship state does not permit this transition")

// Status is a relationship state as seen by one of the two users.
type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusRequestSent     Status = "requestSent"
	StatusRequestReceived Status = "requestReceived"
	StatusNeighbor        Status = "neighbor"
)

// pairKey is the canonical unordered pair: lo is always the smaller user ID.
type pairKey struct {
	lo uint
	hi uint
}

func keyFor(u, v uint) pairKey {
	if u > v {
		u, v = v, u
	}
	return pairKey{lo: u, hi: v}
}

func (k pairKey) other(user uint) uint {
	if k.lo == user {
		return k.hi
	}
	return k.lo
}

// record is the single source of truth for one pair. Both users' views are
// projections of it, so the two sides can never desynchronize.
type record struct {
	initiator uint
	accepted  bool
}

func (rec record) viewedBy(viewer uint) Status {
	if rec.accepted {
		return StatusNeighbor
	}
	if rec.initiator == viewer {
		return StatusRequestSent
	}
	return StatusRequestReceived
}

const lockStripes = 64

// Graph owns the neighbor state machine between pairs of user IDs. Mutations
// on a pair are serialized through a striped mutex keyed by the canonical
// pair, so operations on unrelated pairs proceed independently while
// simultaneous mutual requests on one pair resolve deterministically.
type Graph struct {
	mu      sync.RWMutex
	records map[pairKey]record
	stripes [lockStripes]sync.Mutex
}

// NewGraph creates an empty relationship graph.
func NewGraph() *Graph {
	return &Graph{records: make(map[pairKey]record)}
}

func (g *Graph) stripe(key pairKey) *sync.Mutex {
	h := fnv.New32a()
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(key.lo) >> (8 * i))
		buf[8+i] = byte(uint64(key.hi) >> (8 * i))
	}
	h.Write(buf[:])
	return &g.stripes[h.Sum32()%lockStripes]
}

func (g *Graph) load(key pairKey) (record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.records[key]
	return rec, ok
}

func (g *Graph) store(key pairKey, rec record) {
	g.mu.Lock()
	g.records[key] = rec
	g.mu.Unlock()
}

func (g *Graph) remove(key pairKey) {
	g.mu.Lock()
	delete(g.records, key)
	g.mu.Unlock()
}

// StatusFor returns the relationship between viewer and other, as seen by the
// viewer. Absent records read as unknown.
func (g *Graph) StatusFor(viewer, other uint) Status {
	if viewer == other {
		return StatusUnknown
	}
	rec, ok := g.load(keyFor(viewer, other))
	if !ok {
		return StatusUnknown
	}
	return rec.viewedBy(viewer)
}

// SendRequest opens a neighbor request from one user to another and returns
// the resulting status as seen by the sender.
//
// If the reverse request is already open, both intents collapse straight to
// neighbor: each side has expressed the wish, so nobody is left waiting on an
// accept that would never come. Duplicate sends and sends between existing
// neighbors are no-ops that report the current status.
func (g *Graph) SendRequest(from, to uint) (Status, error) {
	if from == to {
		return StatusUnknown, ErrInvalidTransition
	}
	key := keyFor(from, to)
	lock := g.stripe(key)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := g.load(key)
	if !ok {
		g.store(key, record{initiator: from})
		return StatusRequestSent, nil
	}
	if rec.accepted {
		return StatusNeighbor, nil
	}
	if rec.initiator == from {
		return StatusRequestSent, nil
	}

	// Mutual request: the other side already asked.
	rec.accepted = true
	g.store(key, rec)
	return StatusNeighbor, nil
}

// AcceptRequest resolves a pending request sent by sender to accepter.
func (g *Graph) AcceptRequest(accepter, sender uint) (Status, error) {
	if accepter == sender {
		return StatusUnknown, ErrInvalidTransition
	}
	key := keyFor(accepter, sender)
	lock := g.stripe(key)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := g.load(key)
	if !ok || rec.accepted || rec.initiator != sender {
		return StatusUnknown, ErrInvalidTransition
	}

	rec.accepted = true
	g.store(key, rec)
	return StatusNeighbor, nil
}

// CancelOrReject withdraws a pending request between actor and other. The
// sender cancels, the receiver rejects; either way the record collapses back
// to unknown.
func (g *Graph) CancelOrReject(actor, other uint) (Status, error) {
	if actor == other {
		return StatusUnknown, ErrInvalidTransition
	}
	key := keyFor(actor, other)
	lock := g.stripe(key)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := g.load(key)
	if !ok || rec.accepted {
		return StatusUnknown, ErrInvalidTransition
	}

	g.remove(key)
	return StatusUnknown, nil
}

// RemoveNeighbor dissolves an accepted neighbor link.
func (g *Graph) RemoveNeighbor(actor, other uint) (Status, error) {
	if actor == other {
		return StatusUnknown, ErrInvalidTransition
	}
	key := keyFor(actor, other)
	lock := g.stripe(key)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := g.load(key)
	if !ok || !rec.accepted {
		return StatusUnknown, ErrInvalidTransition
	}

	g.remove(key)
	return StatusUnknown, nil
}

// ListNeighbors returns the IDs of all users the given user holds an accepted
// link with, in ascending order.
func (g *Graph) ListNeighbors(user uint) []uint {
	return g.collect(user, func(rec record) bool {
		return rec.accepted
	})
}

// ListReceivedRequests returns the IDs of users with an open request toward
// the given user.
func (g *Graph) ListReceivedRequests(user uint) []uint {
	return g.collect(user, func(rec record) bool {
		return !rec.accepted && rec.initiator != user
	})
}

// ListSentRequests returns the IDs of users the given user has an open
// request toward.
func (g *Graph) ListSentRequests(user uint) []uint {
	return g.collect(user, func(rec record) bool {
		return !rec.accepted && rec.initiator == user
	})
}

func (g *Graph) collect(user uint, match func(record) bool) []uint {
	g.mu.RLock()
	var out []uint
	for key, rec := range g.records {
		if key.lo != user && key.hi != user {
			continue
		}
		if match(rec) {
			out = append(out, key.other(user))
		}
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
