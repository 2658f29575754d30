package session

import (
	"context"
	"fmt"
	"sync"
	"time"
	"townsquare/backend/internal/hub"
	"townsquare/backend/internal/presence"
	"townsquare/backend/internal/town"
	"townsquare/backend/internal/video"
	"townsquare/backend/pkg/jwt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Session is one user's active membership in one town.
type Session struct {
	ID           string
	UserID       uint
	Username     string
	TownID       string
	SessionToken string
	VideoToken   string

	slot town.SlotHandle
}

// JoinResult is returned to a player who successfully entered a town.
type JoinResult struct {
	SessionID        string
	SessionToken     string
	VideoToken       string
	FriendlyName     string
	IsPubliclyListed bool
	CurrentOccupants []uint
}

// Manager composes the town registry and the video grant issuer to admit
// users into towns. The issuer is an injected collaborator, never ambient
// state, so tests can substitute a fake.
type Manager struct {
	registry    *town.Registry
	issuer      video.GrantIssuer
	presence    *presence.Index
	events      *hub.Hub
	mintTimeout time.Duration

	mu         sync.Mutex
	sessions   map[string]*Session
	byUserTown map[string]string // "townID/userID" -> sessionID

	joins singleflight.Group
}

// NewManager creates a session manager. mintTimeout bounds each video token
// mint so a hung issuer cannot hold a reserved slot indefinitely.
func NewManager(registry *town.Registry, issuer video.GrantIssuer, idx *presence.Index, events *hub.Hub, mintTimeout time.Duration) *Manager {
	return &Manager{
		registry:    registry,
		issuer:      issuer,
		presence:    idx,
		events:      events,
		mintTimeout: mintTimeout,
		sessions:    make(map[string]*Session),
		byUserTown:  make(map[string]string),
	}
}

func userTownKey(userID uint, townID string) string {
	return fmt.Sprintf("%s/%d", townID, userID)
}

// Join admits the user into the town. If the user already holds a live
// session there, that session is returned instead of reserving a second slot;
// concurrent joins for the same user and town are collapsed into one.
func (m *Manager) Join(ctx context.Context, userID uint, username, townID string) (*JoinResult, error) {
	v, err, _ := m.joins.Do(userTownKey(userID, townID), func() (interface{}, error) {
		return m.join(ctx, userID, username, townID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*JoinResult), nil
}

func (m *Manager) join(ctx context.Context, userID uint, username, townID string) (*JoinResult, error) {
	m.mu.Lock()
	if sid, ok := m.byUserTown[userTownKey(userID, townID)]; ok {
		existing := m.sessions[sid]
		m.mu.Unlock()
		return m.result(existing)
	}
	m.mu.Unlock()

	handle, err := m.registry.ReserveSlot(townID)
	if err != nil {
		return nil, err
	}

	videoToken, err := m.mintVideoToken(ctx, townID, username)
	if err != nil {
		// The slot must not stay counted without a usable session.
		m.registry.ReleaseSlot(townID, handle)
		return nil, err
	}

	sessionID := uuid.NewString()
	sessionToken, err := jwt.GenerateSessionToken(sessionID, userID, townID)
	if err != nil {
		m.registry.ReleaseSlot(townID, handle)
		return nil, err
	}

	s := &Session{
		ID:           sessionID,
		UserID:       userID,
		Username:     username,
		TownID:       townID,
		SessionToken: sessionToken,
		VideoToken:   videoToken,
		slot:         handle,
	}

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.byUserTown[userTownKey(userID, townID)] = sessionID
	m.mu.Unlock()

	m.presence.Record(userID, townID)
	m.events.Broadcast(townID, hub.Event{Type: "player_joined", Payload: username})

	return m.result(s)
}

// mintVideoToken calls the external issuer under a bounded timeout. The mint
// runs in its own goroutine so even an issuer that ignores its context cannot
// block the join past the deadline.
func (m *Manager) mintVideoToken(ctx context.Context, townID, username string) (string, error) {
	mintCtx, cancel := context.WithTimeout(ctx, m.mintTimeout)
	defer cancel()

	type mint struct {
		token string
		err   error
	}
	ch := make(chan mint, 1)
	go func() {
		token, err := m.issuer.IssueToken(mintCtx, townID, username)
		ch <- mint{token: token, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("%w: %v", video.ErrUnavailable, res.err)
		}
		return res.token, nil
	case <-mintCtx.Done():
		return "", fmt.Errorf("%w: %v", video.ErrUnavailable, mintCtx.Err())
	}
}

func (m *Manager) result(s *Session) (*JoinResult, error) {
	info, err := m.registry.Info(s.TownID)
	if err != nil {
		return nil, err
	}
	return &JoinResult{
		SessionID:        s.ID,
		SessionToken:     s.SessionToken,
		VideoToken:       s.VideoToken,
		FriendlyName:     info.FriendlyName,
		IsPubliclyListed: info.IsPubliclyListed,
		CurrentOccupants: m.presence.UsersIn(s.TownID),
	}, nil
}

// Leave terminates the session, releasing its town slot and clearing
// presence. Leaving an already-gone session is a no-op.
func (m *Manager) Leave(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sessionID)
	delete(m.byUserTown, userTownKey(s.UserID, s.TownID))
	m.mu.Unlock()

	m.registry.ReleaseSlot(s.TownID, s.slot)
	m.clearPresence(s)
	m.events.Broadcast(s.TownID, hub.Event{Type: "player_left", Payload: s.Username})
}

// clearPresence removes the user's presence only if it still points at this
// session's town. Presence is keyed by user alone, so a later join into
// another town must not be erased by terminating an older session.
func (m *Manager) clearPresence(s *Session) {
	if current, ok := m.presence.TownOf(s.UserID); ok && current == s.TownID {
		m.presence.Remove(s.UserID)
	}
}

// DeleteTown removes the town and force-terminates every session bound to it.
func (m *Manager) DeleteTown(townID, password string) error {
	if err := m.registry.Delete(townID, password); err != nil {
		return err
	}

	m.mu.Lock()
	var evicted []*Session
	for id, s := range m.sessions {
		if s.TownID == townID {
			delete(m.sessions, id)
			delete(m.byUserTown, userTownKey(s.UserID, s.TownID))
			evicted = append(evicted, s)
		}
	}
	m.mu.Unlock()

	for _, s := range evicted {
		m.clearPresence(s)
	}
	m.events.Broadcast(townID, hub.Event{Type: "town_deleted", Payload: townID})
	return nil
}

// Get returns a live session by ID.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}
