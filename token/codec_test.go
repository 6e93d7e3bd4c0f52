package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclub/clubd/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(now time.Time) *Codec {
	return NewCodec(testSecret, 30*time.Minute, 40*time.Minute).
		WithClock(func() time.Time { return now })
}

func TestIssueRoundTrip(t *testing.T) {
	codec := newTestCodec(time.Now())

	pair, err := codec.Issue("u1", domain.RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := codec.ParseClaims(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.MemberID())
	assert.Equal(t, string(domain.RoleUser), claims.Role)
	assert.Equal(t, KindAccess, claims.Kind)

	refreshClaims, err := codec.ParseClaims(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, refreshClaims.Kind)
}

func TestTokenKind(t *testing.T) {
	codec := newTestCodec(time.Now())

	pair, err := codec.Issue("u1", domain.RoleAdmin)
	require.NoError(t, err)

	assert.False(t, codec.IsRefreshToken(pair.AccessToken))
	assert.True(t, codec.IsRefreshToken(pair.RefreshToken))
	assert.False(t, codec.IsRefreshToken("not.a.token"))
}

func TestValidate(t *testing.T) {
	issuedAt := time.Now()
	codec := newTestCodec(issuedAt)

	pair, err := codec.Issue("u1", domain.RoleUser)
	require.NoError(t, err)

	testCases := []struct {
		name  string
		token string
		now   time.Time
		valid bool
	}{
		{"fresh access token", pair.AccessToken, issuedAt.Add(time.Minute), true},
		{"fresh refresh token", pair.RefreshToken, issuedAt.Add(time.Minute), true},
		{"expired access token", pair.AccessToken, issuedAt.Add(31 * time.Minute), false},
		{"refresh token outlives access", pair.RefreshToken, issuedAt.Add(31 * time.Minute), true},
		{"expired refresh token", pair.RefreshToken, issuedAt.Add(41 * time.Minute), false},
		{"malformed token", "garbage", issuedAt, false},
		{"empty token", "", issuedAt, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			codec.WithClock(func() time.Time { return tc.now })
			assert.Equal(t, tc.valid, codec.Validate(tc.token))
		})
	}
}

func TestParseClaimsExpiredToken(t *testing.T) {
	issuedAt := time.Now()
	codec := newTestCodec(issuedAt)

	pair, err := codec.Issue("u1", domain.RoleUser)
	require.NoError(t, err)

	// Past both expiries the token no longer validates, but its claims
	// must still decode to support downstream identity checks.
	codec.WithClock(func() time.Time { return issuedAt.Add(2 * time.Hour) })
	assert.False(t, codec.Validate(pair.AccessToken))

	claims, err := codec.ParseClaims(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.MemberID())
	assert.Equal(t, string(domain.RoleUser), claims.Role)
}

func TestParseClaimsTamperedToken(t *testing.T) {
	codec := newTestCodec(time.Now())

	pair, err := codec.Issue("u1", domain.RoleUser)
	require.NoError(t, err)

	forger := NewCodec("another-secret-entirely-different", 30*time.Minute, 40*time.Minute)
	forged, err := forger.Issue("u1", domain.RoleSuper)
	require.NoError(t, err)

	_, err = codec.ParseClaims(forged.AccessToken)
	assert.Error(t, err)

	tampered := pair.AccessToken[:len(pair.AccessToken)-4] + "AAAA"
	_, err = codec.ParseClaims(tampered)
	assert.Error(t, err)
}

func TestAuthentication(t *testing.T) {
	codec := newTestCodec(time.Now())

	pair, err := codec.Issue("admin1", domain.RoleAdmin)
	require.NoError(t, err)

	principal, err := codec.Authentication(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin1", principal.MemberID)
	assert.Equal(t, domain.RoleAdmin, principal.Role)

	_, err = codec.Authentication("garbage")
	assert.Error(t, err)
}
