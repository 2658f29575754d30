package identity

import (
	"errors"
	"strings"
	"townsquare/backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUnauthenticated is returned when credentials do not resolve to an account.
	ErrUnauthenticated = errors.New("invalid credentials")
	// ErrNotFound is returned when no account exists for the given ID.
	ErrNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when registering an already-used username.
	ErrUsernameTaken = errors.New("username already exists")
)

// User is the immutable public identity of an account.
type User struct {
	ID       uint
	Username string
}

// Store resolves credentials and usernames to stable user identities.
type Store interface {
	Register(username, password string) (User, error)
	Resolve(username, password string) (User, error)
	Lookup(userID uint) (User, error)
	SearchByUsername(query string) ([]User, error)
}

// GormStore is the database-backed identity store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over the given database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *GormStore) Register(username, password string) (User, error) {
	var existing models.User
	if err := s.db.Where("username = ?", username).First(&existing).Error; err == nil {
		return User{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.db.Create(&user).Error; err != nil {
		return User{}, registerCreateError(err)
	}

	return User{ID: user.ID, Username: user.Username}, nil
}

// registerCreateError maps the unique-constraint violation raised when two
// registrations of the same username race past the existence check.
func registerCreateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUsernameTaken
	}
	return err
}

// Resolve authenticates the credentials and returns the account identity.
func (s *GormStore) Resolve(username, password string) (User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return User{}, ErrUnauthenticated
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrUnauthenticated
	}

	return User{ID: user.ID, Username: user.Username}, nil
}

// Lookup returns the identity for a user ID.
func (s *GormStore) Lookup(userID uint) (User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return User{}, ErrNotFound
	}
	return User{ID: user.ID, Username: user.Username}, nil
}

// searchPattern builds the LIKE pattern for a prefix search. LIKE
// metacharacters in the query are escaped so they match literally instead of
// acting as wildcards.
func searchPattern(query string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(query) + "%"
}

// SearchByUsername returns accounts whose username starts with the query,
// ordered by username. The match is case-sensitive, so a fixed query always
// yields the same result set.
func (s *GormStore) SearchByUsername(query string) ([]User, error) {
	var rows []models.User
	if err := s.db.Where("username LIKE ?", searchPattern(query)).Order("username").Limit(50).Find(&rows).Error; err != nil {
		return nil, err
	}

	users := make([]User, 0, len(rows))
	for _, row := range rows {
		users = append(users, User{ID: row.ID, Username: row.Username})
	}
	return users, nil
}
