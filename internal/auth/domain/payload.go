package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"
)

// Claim names used on the wire.
const (
	ClaimSubject   = "sub"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimTokenID   = "jti"
	ClaimRole      = "role"
	ClaimEmail     = "email"
	ClaimFamilyID  = "fid"

	// Owned by the signer; never part of a payload.
	ClaimIssuer    = "iss"
	ClaimAudience  = "aud"
	ClaimNotBefore = "nbf"
)

var reservedClaims = map[string]struct{}{
	ClaimSubject:   {},
	ClaimIssuedAt:  {},
	ClaimExpiresAt: {},
	ClaimTokenID:   {},
	ClaimRole:      {},
	ClaimEmail:     {},
	ClaimFamilyID:  {},
	ClaimIssuer:    {},
	ClaimAudience:  {},
	ClaimNotBefore: {},
}

// IsReservedClaim reports whether name is a standard claim that cannot be
// used as a metadata key.
func IsReservedClaim(name string) bool {
	_, ok := reservedClaims[name]
	return ok
}

// PayloadParams are the inputs to NewTokenPayload.
type PayloadParams struct {
	Subject  string
	TokenID  string
	IssuedAt time.Time

	// ExpiresAt is optional. A zero value means expiry is enforced elsewhere.
	ExpiresAt time.Time

	Role     string
	Email    string
	FamilyID string // refresh tokens only
	Metadata map[string]any
}

// TokenPayload holds the claims of one access or refresh token. It is
// immutable: the With* methods return modified copies and Metadata returns a
// copy of the map, so a payload can be shared between goroutines.
//
// Timestamps are kept at whole seconds, the precision of the wire format:
// the issue time rounds down and the expiry rounds up, so an expiry that
// follows the issue time by less than a second still lands strictly after it.
type TokenPayload struct {
	subject   string
	tokenID   string
	issuedAt  time.Time
	expiresAt time.Time
	role      string
	email     string
	familyID  string
	metadata  map[string]any
}

// NewTokenPayload validates p and returns a payload. It fails with
// ErrInvalidInput when the subject, token id or issue time is missing, when
// the expiry is not after the issue time, or when a metadata key collides
// with a standard claim.
func NewTokenPayload(p PayloadParams) (TokenPayload, error) {
	if p.Subject == "" {
		return TokenPayload{}, InvalidInputError("subject", "is required")
	}
	if p.TokenID == "" {
		return TokenPayload{}, InvalidInputError("token id", "is required")
	}
	if p.IssuedAt.IsZero() {
		return TokenPayload{}, InvalidInputError("issued at", "is required")
	}

	issuedAt := truncate(p.IssuedAt)
	var expiresAt time.Time
	if !p.ExpiresAt.IsZero() {
		if !p.ExpiresAt.After(p.IssuedAt) {
			return TokenPayload{}, InvalidInputError("expires at", "must be after issued at")
		}
		expiresAt = roundUp(p.ExpiresAt)
	}

	for k := range p.Metadata {
		if k == "" {
			return TokenPayload{}, InvalidInputError("metadata", "keys must not be empty")
		}
		if IsReservedClaim(k) {
			return TokenPayload{}, InvalidInputError("metadata", fmt.Sprintf("key %q is a reserved claim", k))
		}
	}

	return TokenPayload{
		subject:   p.Subject,
		tokenID:   p.TokenID,
		issuedAt:  issuedAt,
		expiresAt: expiresAt,
		role:      p.Role,
		email:     p.Email,
		familyID:  p.FamilyID,
		metadata:  cloneMetadata(p.Metadata),
	}, nil
}

func truncate(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}

func roundUp(t time.Time) time.Time {
	out := truncate(t)
	if out.Before(t) {
		out = out.Add(time.Second)
	}
	return out
}

func cloneMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}

func (p TokenPayload) Subject() string      { return p.subject }
func (p TokenPayload) TokenID() string      { return p.tokenID }
func (p TokenPayload) IssuedAt() time.Time  { return p.issuedAt }
func (p TokenPayload) ExpiresAt() time.Time { return p.expiresAt }
func (p TokenPayload) Role() string         { return p.role }
func (p TokenPayload) Email() string        { return p.email }
func (p TokenPayload) FamilyID() string     { return p.familyID }

// Metadata returns a copy of the extra claims, or nil when there are none.
func (p TokenPayload) Metadata() map[string]any { return cloneMetadata(p.metadata) }

// IsRefresh reports whether the payload belongs to a refresh token.
func (p TokenPayload) IsRefresh() bool { return p.familyID != "" }

// Params returns the inputs that would rebuild p.
func (p TokenPayload) Params() PayloadParams {
	return PayloadParams{
		Subject:   p.subject,
		TokenID:   p.tokenID,
		IssuedAt:  p.issuedAt,
		ExpiresAt: p.expiresAt,
		Role:      p.role,
		Email:     p.email,
		FamilyID:  p.familyID,
		Metadata:  p.Metadata(),
	}
}

// IsExpired reports whether now is at or past the expiry. A payload without
// an expiry never expires.
func (p TokenPayload) IsExpired(now time.Time) bool {
	if p.expiresAt.IsZero() {
		return false
	}
	return !now.Before(p.expiresAt)
}

// RemainingTTL is the time left before expiry, or zero when expired or when no
// expiry is set.
func (p TokenPayload) RemainingTTL(now time.Time) time.Duration {
	if p.expiresAt.IsZero() || p.IsExpired(now) {
		return 0
	}
	return p.expiresAt.Sub(now)
}

// WithExpiresAt returns a copy with a new expiry.
func (p TokenPayload) WithExpiresAt(t time.Time) (TokenPayload, error) {
	params := p.Params()
	params.ExpiresAt = t
	return NewTokenPayload(params)
}

// WithFamilyID returns a copy bound to familyID.
func (p TokenPayload) WithFamilyID(familyID string) TokenPayload {
	out := p
	out.familyID = familyID
	out.metadata = cloneMetadata(p.metadata)
	return out
}

// WithMetadata returns a copy with key set to value.
func (p TokenPayload) WithMetadata(key string, value any) (TokenPayload, error) {
	params := p.Params()
	if params.Metadata == nil {
		params.Metadata = make(map[string]any, 1)
	}
	params.Metadata[key] = value
	return NewTokenPayload(params)
}

// ToWireClaims flattens the payload into JWT claims. Metadata entries become
// top-level claims and unset optional fields are omitted.
func (p TokenPayload) ToWireClaims() map[string]any {
	claims := make(map[string]any, 7+len(p.metadata))
	maps.Copy(claims, p.metadata)

	claims[ClaimSubject] = p.subject
	claims[ClaimTokenID] = p.tokenID
	claims[ClaimIssuedAt] = p.issuedAt.Unix()
	if !p.expiresAt.IsZero() {
		claims[ClaimExpiresAt] = p.expiresAt.Unix()
	}
	if p.role != "" {
		claims[ClaimRole] = p.role
	}
	if p.email != "" {
		claims[ClaimEmail] = p.email
	}
	if p.familyID != "" {
		claims[ClaimFamilyID] = p.familyID
	}
	return claims
}

// FromWireClaims rebuilds a payload from decoded JWT claims. Numeric claims
// may be int, int64, float64 or json.Number. Signer owned claims (iss, aud,
// nbf) are dropped and any other unknown claim becomes metadata.
func FromWireClaims(claims map[string]any) (TokenPayload, error) {
	var (
		p   PayloadParams
		err error
	)

	if p.Subject, err = stringClaim(claims, ClaimSubject); err != nil {
		return TokenPayload{}, err
	}
	if p.TokenID, err = stringClaim(claims, ClaimTokenID); err != nil {
		return TokenPayload{}, err
	}
	if p.Role, err = stringClaim(claims, ClaimRole); err != nil {
		return TokenPayload{}, err
	}
	if p.Email, err = stringClaim(claims, ClaimEmail); err != nil {
		return TokenPayload{}, err
	}
	if p.FamilyID, err = stringClaim(claims, ClaimFamilyID); err != nil {
		return TokenPayload{}, err
	}
	if p.IssuedAt, err = timeClaim(claims, ClaimIssuedAt); err != nil {
		return TokenPayload{}, err
	}
	if p.ExpiresAt, err = timeClaim(claims, ClaimExpiresAt); err != nil {
		return TokenPayload{}, err
	}

	for k, v := range claims {
		if IsReservedClaim(k) {
			continue
		}
		if p.Metadata == nil {
			p.Metadata = make(map[string]any)
		}
		p.Metadata[k] = v
	}

	return NewTokenPayload(p)
}

func stringClaim(claims map[string]any, name string) (string, error) {
	v, ok := claims[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", InvalidInputError(name, fmt.Sprintf("must be a string, got %T", v))
	}
	return s, nil
}

func timeClaim(claims map[string]any, name string) (time.Time, error) {
	v, ok := claims[name]
	if !ok || v == nil {
		return time.Time{}, nil
	}

	var sec int64
	switch n := v.(type) {
	case int64:
		sec = n
	case int:
		sec = int64(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return time.Time{}, InvalidInputError(name, "is not a finite number")
		}
		sec = int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return time.Time{}, InvalidInputError(name, "is not a number")
			}
			i = int64(f)
		}
		sec = i
	default:
		return time.Time{}, InvalidInputError(name, fmt.Sprintf("must be numeric, got %T", v))
	}
	return time.Unix(sec, 0).UTC(), nil
}
