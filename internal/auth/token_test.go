package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/types"
)

func sha256Hex(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	store, err := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	return NewTokenService(store)
}

func validParams() GenerateParams {
	return GenerateParams{
		Name:           "ci-runner",
		Scopes:         []types.Scope{types.ScopeRead},
		InstanceAccess: []types.InstanceAccess{types.InstancePrivate},
	}
}

func TestGenerateTokenRoundTripsThroughValidate(t *testing.T) {
	svc := newTestService(t)

	generated, err := svc.GenerateToken(validParams())
	require.NoError(t, err)
	assert.True(t, rawTokenRegex.MatchString(generated.RawToken))

	outcome, meta, err := svc.ValidateToken(generated.RawToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
	assert.Equal(t, "ci-runner", meta.Name)
}

func TestGenerateTokenRejectsInvalidParams(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		name   string
		params GenerateParams
	}{
		{"empty name", GenerateParams{Scopes: []types.Scope{types.ScopeRead}, InstanceAccess: []types.InstanceAccess{types.InstancePrivate}}},
		{"no scopes", GenerateParams{Name: "x", InstanceAccess: []types.InstanceAccess{types.InstancePrivate}}},
		{"bad scope", GenerateParams{Name: "x", Scopes: []types.Scope{"superuser"}, InstanceAccess: []types.InstanceAccess{types.InstancePrivate}}},
		{"no instance access", GenerateParams{Name: "x", Scopes: []types.Scope{types.ScopeRead}}},
		{"expiry too large", func() GenerateParams {
			p := validParams()
			big := int64(maxExpirySecs + 1)
			p.ExpiresInSeconds = &big
			return p
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GenerateToken(tc.params)
			var verr *errs.TokenValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidateTokenOutcomes(t *testing.T) {
	svc := newTestService(t)

	outcome, _, err := svc.ValidateToken("not-even-the-right-shape")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, outcome)

	outcome, _, err = svc.ValidateToken(tokenPrefix + "0000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)

	generated, err := svc.GenerateToken(validParams())
	require.NoError(t, err)

	hashBytes := sha256Hex(generated.RawToken)
	require.NoError(t, svc.RevokeToken(hashBytes))

	outcome, _, err = svc.ValidateToken(generated.RawToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRevoked, outcome)
}

func TestRotateTokenInvalidatesOldAndKeepsGrants(t *testing.T) {
	svc := newTestService(t)

	generated, err := svc.GenerateToken(validParams())
	require.NoError(t, err)
	oldHash := sha256Hex(generated.RawToken)

	rotated, err := svc.RotateToken(oldHash, nil)
	require.NoError(t, err)
	assert.NotEqual(t, generated.RawToken, rotated.RawToken)
	assert.Equal(t, generated.Metadata.Name, rotated.Metadata.Name)

	outcome, _, err := svc.ValidateToken(generated.RawToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRevoked, outcome)

	outcome, _, err = svc.ValidateToken(rotated.RawToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
}

func TestFindTokenByNameSkipsRevoked(t *testing.T) {
	svc := newTestService(t)

	generated, err := svc.GenerateToken(validParams())
	require.NoError(t, err)

	_, ok := svc.FindTokenByName("ci-runner")
	assert.True(t, ok)

	require.NoError(t, svc.RevokeToken(sha256Hex(generated.RawToken)))
	_, ok = svc.FindTokenByName("ci-runner")
	assert.False(t, ok)
}

func TestFindTokenByHashPrefixIsCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	generated, err := svc.GenerateToken(validParams())
	require.NoError(t, err)

	hash := sha256Hex(generated.RawToken)
	matches := svc.FindTokenByHashPrefix(strings.ToUpper(hash[:8]))
	require.Len(t, matches, 1)
	assert.Equal(t, hash, matches[0].TokenHash)
}

func TestDeleteTokenRemovesEntirely(t *testing.T) {
	svc := newTestService(t)
	generated, err := svc.GenerateToken(validParams())
	require.NoError(t, err)

	hash := sha256Hex(generated.RawToken)
	require.NoError(t, svc.DeleteToken(hash))

	outcome, _, err := svc.ValidateToken(generated.RawToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
}
