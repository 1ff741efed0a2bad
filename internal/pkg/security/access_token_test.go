package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := IssueAccessToken("s3cret", 42, "transport_manager", time.Hour, time.Now())
	require.NoError(t, err)

	id, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestAccessTokenRejections(t *testing.T) {
	expired, err := IssueAccessToken("s3cret", 42, "", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	valid, err := IssueAccessToken("s3cret", 42, "", time.Hour, time.Now())
	require.NoError(t, err)
	_, err = ParseAccessToken("other", valid.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = ParseAccessToken("", valid.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "42", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = IssueAccessToken("", 1, "", time.Hour, time.Now())
	assert.Error(t, err)
}
