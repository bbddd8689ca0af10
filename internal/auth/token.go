package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/types"
)

const (
	tokenPrefix    = "pk_mcp_"
	rawTokenBytes  = 16
	maxExpirySecs  = 31_536_000
	maxNameLength  = 100
)

var nameRegex = regexp.MustCompile(`^[\w\s\-_.]+$`)
var rawTokenRegex = regexp.MustCompile(`^pk_mcp_[a-f0-9]{32}$`)

// ValidationOutcome classifies a validateToken call.
type ValidationOutcome string

const (
	OutcomeValid   ValidationOutcome = "valid"
	OutcomeInvalid ValidationOutcome = "invalid"
	OutcomeNotFound ValidationOutcome = "not_found"
	OutcomeRevoked ValidationOutcome = "revoked"
	OutcomeExpired ValidationOutcome = "expired"
)

// GenerateParams configures generateToken (§4.5 step 1).
type GenerateParams struct {
	Name             string
	Scopes           []types.Scope
	InstanceAccess   []types.InstanceAccess
	ExpiresInSeconds *int64
}

// GeneratedToken is generateToken's return value. RawToken exists
// only at generation time — it is never persisted.
type GeneratedToken struct {
	RawToken string
	Metadata types.TokenMetadata
}

// TokenService implements the A1/C4 token lifecycle over a
// TokenStore.
type TokenService struct {
	store *TokenStore
}

// NewTokenService wraps store.
func NewTokenService(store *TokenStore) *TokenService {
	return &TokenService{store: store}
}

func validateGenerateParams(p GenerateParams) error {
	if len(p.Name) == 0 || len(p.Name) > maxNameLength || !nameRegex.MatchString(p.Name) {
		return &errs.TokenValidationError{Message: "name must match ^[\\w\\s\\-_.]+$ and be 1-100 characters"}
	}
	if len(p.Scopes) == 0 {
		return &errs.TokenValidationError{Message: "scopes must be a non-empty subset of {read,write,admin}"}
	}
	for _, s := range p.Scopes {
		if s != types.ScopeRead && s != types.ScopeWrite && s != types.ScopeAdmin {
			return &errs.TokenValidationError{Message: "invalid scope: " + string(s)}
		}
	}
	if len(p.InstanceAccess) == 0 {
		return &errs.TokenValidationError{Message: "instanceAccess must be a non-empty subset of {private,work,public}"}
	}
	for _, a := range p.InstanceAccess {
		if a != types.InstancePrivate && a != types.InstanceWork && a != types.InstancePublic {
			return &errs.TokenValidationError{Message: "invalid instanceAccess: " + string(a)}
		}
	}
	if p.ExpiresInSeconds != nil && (*p.ExpiresInSeconds <= 0 || *p.ExpiresInSeconds > maxExpirySecs) {
		return &errs.TokenValidationError{Message: "expiresInSeconds must be in (0, 31536000]"}
	}
	return nil
}

// GenerateToken implements §4.5's 5-step generation algorithm.
func (s *TokenService) GenerateToken(params GenerateParams) (GeneratedToken, error) {
	if err := validateGenerateParams(params); err != nil {
		return GeneratedToken{}, err
	}

	raw := make([]byte, rawTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return GeneratedToken{}, &errs.TokenStorageError{Op: "generate", Cause: err, Recoverable: false}
	}
	rawToken := tokenPrefix + hex.EncodeToString(raw)

	hashBytes := sha256.Sum256([]byte(rawToken))
	tokenHash := hex.EncodeToString(hashBytes[:])

	now := time.Now()
	var expiresAt *time.Time
	if params.ExpiresInSeconds != nil {
		t := now.Add(time.Duration(*params.ExpiresInSeconds) * time.Second)
		expiresAt = &t
	}

	metadata := types.TokenMetadata{
		Name:           params.Name,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		Scopes:         params.Scopes,
		InstanceAccess: params.InstanceAccess,
	}

	if err := s.store.Put(types.StoredToken{TokenHash: tokenHash, Metadata: metadata}); err != nil {
		return GeneratedToken{}, err
	}

	return GeneratedToken{RawToken: rawToken, Metadata: metadata}, nil
}

// ValidateToken implements the §4.5 hot path (target <10ms): a quick
// format check, a hash lookup, and a state check, with a
// fire-and-forget usage-stat update on success.
func (s *TokenService) ValidateToken(rawToken string) (ValidationOutcome, types.TokenMetadata, error) {
	if !rawTokenRegex.MatchString(rawToken) {
		return OutcomeInvalid, types.TokenMetadata{}, nil
	}

	hashBytes := sha256.Sum256([]byte(rawToken))
	hash := hex.EncodeToString(hashBytes[:])

	tok, ok := s.store.Get(hash)
	if !ok {
		return OutcomeNotFound, types.TokenMetadata{}, nil
	}
	if tok.Revoked {
		return OutcomeRevoked, tok.Metadata, nil
	}
	if tok.Metadata.ExpiresAt != nil && tok.Metadata.ExpiresAt.Before(time.Now()) {
		return OutcomeExpired, tok.Metadata, nil
	}

	go func() {
		if err := s.store.UpdateUsage(hash, time.Now()); err != nil {
			_ = err // logged by the caller's metrics/event logger, never surfaced here
		}
	}()

	return OutcomeValid, tok.Metadata, nil
}

// RevokeToken sets revoked=true/revokedAt=now and persists.
func (s *TokenService) RevokeToken(hash string) error {
	tok, ok := s.store.Get(hash)
	if !ok {
		return &errs.EntityNotFound{EntityType: "Token", Key: hash}
	}
	now := time.Now()
	tok.Revoked = true
	tok.RevokedAt = &now
	return s.store.Put(tok)
}

// DeleteToken removes a token entirely (admin-only).
func (s *TokenService) DeleteToken(hash string) error {
	return s.store.Delete(hash)
}

// RotateToken revokes the old token and generates a fresh one with
// the same name/scopes/instanceAccess, extending expiry by
// expiresInSeconds from now if provided (else keeping the prior
// absolute expiry untouched is not attempted here — rotation always
// starts a fresh lifetime, matching "this is the only time the raw
// token exists").
func (s *TokenService) RotateToken(hash string, expiresInSeconds *int64) (GeneratedToken, error) {
	tok, ok := s.store.Get(hash)
	if !ok {
		return GeneratedToken{}, &errs.EntityNotFound{EntityType: "Token", Key: hash}
	}
	if err := s.RevokeToken(hash); err != nil {
		return GeneratedToken{}, err
	}
	return s.GenerateToken(GenerateParams{
		Name:             tok.Metadata.Name,
		Scopes:           tok.Metadata.Scopes,
		InstanceAccess:   tok.Metadata.InstanceAccess,
		ExpiresInSeconds: expiresInSeconds,
	})
}

// FindTokenByName matches an exact, case-sensitive name among
// non-revoked, non-expired entries.
func (s *TokenService) FindTokenByName(name string) (types.StoredToken, bool) {
	now := time.Now()
	for _, tok := range s.store.All() {
		if tok.Revoked {
			continue
		}
		if tok.Metadata.ExpiresAt != nil && tok.Metadata.ExpiresAt.Before(now) {
			continue
		}
		if tok.Metadata.Name == name {
			return tok, true
		}
	}
	return types.StoredToken{}, false
}

// FindTokenByHashPrefix case-insensitively matches any token
// (revoked/expired included) whose hash starts with prefix. Prefix
// collisions are a caller concern above this layer.
func (s *TokenService) FindTokenByHashPrefix(prefix string) []types.StoredToken {
	prefix = strings.ToLower(prefix)
	var matches []types.StoredToken
	for _, tok := range s.store.All() {
		if strings.HasPrefix(strings.ToLower(tok.TokenHash), prefix) {
			matches = append(matches, tok)
		}
	}
	return matches
}
