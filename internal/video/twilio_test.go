package video

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTwilioVideo_IssueToken(t *testing.T) {
	req := require.New(t)
	issuer := NewTwilioVideo("AC123", "SK456", "secret")

	signed, err := issuer.IssueToken(context.Background(), "town-1", "alice")
	req.NoError(err)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	req.NoError(err)
	req.True(token.Valid)
	req.Equal("twilio-fpa;v=1", token.Header["cty"])

	claims := token.Claims.(jwt.MapClaims)
	req.Equal("SK456", claims["iss"])
	req.Equal("AC123", claims["sub"])

	grants := claims["grants"].(map[string]interface{})
	req.Equal("alice", grants["identity"])
	videoGrant := grants["video"].(map[string]interface{})
	req.Equal("town-1", videoGrant["room"])
}

func TestTwilioVideo_IssueToken_CancelledContext(t *testing.T) {
	req := require.New(t)
	issuer := NewTwilioVideo("AC123", "SK456", "secret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := issuer.IssueToken(ctx, "town-1", "alice")
	req.Error(err)
}
