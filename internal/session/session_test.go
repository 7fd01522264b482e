package session

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func fixedIssuer(key string, ttl time.Duration, now time.Time) *Issuer {
	i := NewIssuer([]byte(key), ttl)
	i.now = func() time.Time { return now }
	return i
}

func TestIssueParse_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	iss := fixedIssuer("secret", 24*time.Hour, now)
	uid := uuid.Must(uuid.NewV4())

	tok, err := iss.Issue(uid, Claims{Admin: true})
	require.NoError(t, err)
	require.Equal(t, now.Add(24*time.Hour), tok.ExpiresAt)

	c, err := iss.Parse(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, uid, c.UserID)
	require.True(t, c.Admin)
}

func TestParse_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	iss := fixedIssuer("secret", time.Hour, now)
	tok, err := iss.Issue(uuid.Must(uuid.NewV4()), Claims{})
	require.NoError(t, err)

	iss.now = func() time.Time { return now.Add(time.Hour + 20*time.Second) }
	_, err = iss.Parse(tok.AccessToken)
	require.NoError(t, err, "within leeway")

	iss.now = func() time.Time { return now.Add(time.Hour + time.Minute) }
	_, err = iss.Parse(tok.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Rejects(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	iss := fixedIssuer("secret", time.Hour, now)
	other := fixedIssuer("other", time.Hour, now)

	foreign, err := other.Issue(uuid.Must(uuid.NewV4()), Claims{})
	require.NoError(t, err)

	noneTok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   uuid.Must(uuid.NewV4()).String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: uuid.Must(uuid.NewV4()).String(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":       "a.b.c",
		"other key":     foreign.AccessToken,
		"alg none":      noneTok,
		"bad subject":   badSub,
		"no expiration": noExp,
	} {
		_, err := iss.Parse(tok)
		require.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
