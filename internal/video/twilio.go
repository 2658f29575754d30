package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnavailable is returned when the video service fails or times out. It is
// distinct from capacity failures so callers can tell "town full" apart from
// "video broken".
var ErrUnavailable = errors.New("video service unavailable")

// GrantIssuer mints access tokens that admit an identity into a video room.
// Implementations are injected into the session manager so tests can
// substitute a fake.
type GrantIssuer interface {
	IssueToken(ctx context.Context, roomID, identity string) (string, error)
}

// Each client times out after 1 hour of video and needs to refresh.
const maxAllowedSessionDuration = time.Hour

// TwilioVideo issues Twilio programmable-video access tokens, signed locally
// with the API key secret.
type TwilioVideo struct {
	accountSID   string
	apiKeySID    string
	apiKeySecret string
}

// NewTwilioVideo creates an issuer for the given Twilio credentials.
func NewTwilioVideo(accountSID, apiKeySID, apiKeySecret string) *TwilioVideo {
	return &TwilioVideo{
		accountSID:   accountSID,
		apiKeySID:    apiKeySID,
		apiKeySecret: apiKeySecret,
	}
}

// IssueToken mints an access token granting the identity entry to the video
// room for the town.
func (t *TwilioVideo) IssueToken(ctx context.Context, roomID, identity string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"jti": fmt.Sprintf("%s-%d", t.apiKeySID, now.Unix()),
		"iss": t.apiKeySID,
		"sub": t.accountSID,
		"iat": now.Unix(),
		"exp": now.Add(maxAllowedSessionDuration).Unix(),
		"grants": map[string]interface{}{
			"identity": identity,
			"video": map[string]interface{}{
				"room": roomID,
			},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["cty"] = "twilio-fpa;v=1"

	signed, err := token.SignedString([]byte(t.apiKeySecret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return signed, nil
}
