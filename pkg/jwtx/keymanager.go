package jwtx

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/mentorlink/pkg/cryptox"
)

// Supported JWT signing algorithms.
const (
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// KeyManager owns the signing keys of an instance and the KeySet published
// through JWKS. Signing picks one of the active keys at random. A manager
// built by NewPersistentKeyManager also writes every key change to its
// KeyStore.
type KeyManager struct {
	KeySet   *KeySet
	Verifier Verifier

	issuer    string
	algorithm string
	now       func() time.Time

	// nil for ephemeral managers
	keys      KeyStore
	encrypter *cryptox.KeyEncrypter

	mu      sync.RWMutex
	signers []Signer
	retired []RetiredKey
}

// RetiredKey is a public key that no longer signs but still verifies until
// ExpiresAt.
type RetiredKey struct {
	KID       string
	RetiredAt time.Time
	ExpiresAt time.Time
}

// KeyManagerOptions configures NewEphemeralKeyManager.
type KeyManagerOptions struct {
	// Algorithm is "EdDSA" (default) or "ES256".
	Algorithm string

	// Issuer is stamped into every signed token and required on verify.
	Issuer string

	// NumKeys is clamped to [1, 10]; zero means 3.
	NumKeys int

	// Leeway for exp/nbf/iat checks.
	Leeway time.Duration

	// Now overrides the verifier's clock and the key timestamps.
	Now func() time.Time
}

func (o KeyManagerOptions) withDefaults() (KeyManagerOptions, error) {
	if o.Issuer == "" {
		return o, fmt.Errorf("jwtx: Issuer is required")
	}
	if o.Algorithm == "" {
		o.Algorithm = AlgorithmEdDSA
	}
	if o.Algorithm != AlgorithmEdDSA && o.Algorithm != AlgorithmES256 {
		return o, fmt.Errorf("jwtx: unsupported algorithm %q (supported: EdDSA, ES256)", o.Algorithm)
	}
	if o.NumKeys <= 0 {
		o.NumKeys = 3
	}
	o.NumKeys = min(o.NumKeys, 10)
	if o.Now == nil {
		o.Now = time.Now
	}
	return o, nil
}

func newKeyManager(opts KeyManagerOptions, algorithms []string) *KeyManager {
	keyset := NewKeySet()
	return &KeyManager{
		KeySet: keyset,
		Verifier: NewVerifier(keyset, VerifyOptions{
			Issuer:     opts.Issuer,
			Algorithms: algorithms,
			Leeway:     opts.Leeway,
			Now:        opts.Now,
		}),
		issuer:    opts.Issuer,
		algorithm: opts.Algorithm,
		now:       opts.Now,
	}
}

// NewEphemeralKeyManager generates fresh in-memory keys. Tokens signed by a
// previous process will no longer verify.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	km := newKeyManager(opts, []string{opts.Algorithm})
	for i := range opts.NumKeys {
		if _, err := km.GenerateSigner(context.Background()); err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}
	}
	return km, nil
}

func generateSigner(algorithm string) (Signer, []byte, error) {
	kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key ID: %w", err)
	}
	kid = "mentorlink-" + kid

	var pemBytes []byte
	switch algorithm {
	case AlgorithmES256:
		pemBytes, err = cryptox.GenerateES256Key()
	case AlgorithmEdDSA:
		pemBytes, err = cryptox.GenerateEd25519Key()
	default:
		return nil, nil, fmt.Errorf("unsupported algorithm %q (supported: EdDSA, ES256)", algorithm)
	}
	if err != nil {
		return nil, nil, err
	}

	signer, err := signerFromPEM(algorithm, kid, pemBytes)
	if err != nil {
		return nil, nil, err
	}
	return signer, pemBytes, nil
}

func signerFromPEM(algorithm, kid string, pemBytes []byte) (Signer, error) {
	switch algorithm {
	case AlgorithmES256:
		return NewSignerES256(kid, pemBytes)
	case AlgorithmEdDSA:
		return NewSignerEdDSA(kid, pemBytes)
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
}

func (km *KeyManager) Algorithm() string { return km.algorithm }
func (km *KeyManager) Issuer() string    { return km.issuer }

// IsReady reports whether verification keys are loaded.
func (km *KeyManager) IsReady() bool { return km.KeySet.IsReady() }

// GetSigner returns a randomly selected active signer.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// Sign stamps the issuer onto a copy of claims and signs it.
func (km *KeyManager) Sign(claims Claims) (string, error) {
	signer := km.GetSigner()
	if signer == nil {
		return "", fmt.Errorf("jwtx: no active signing key")
	}

	out := make(Claims, len(claims)+1)
	maps.Copy(out, claims)
	out[ClaimIssuer] = km.issuer

	return signer.Sign(out)
}

// Signers returns a snapshot of the active signing keys.
func (km *KeyManager) Signers() []Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return append([]Signer(nil), km.signers...)
}

// AddSigner publishes s and starts signing with it. The key is not stored;
// persistent managers should use GenerateSigner.
func (km *KeyManager) AddSigner(s Signer) error {
	if s.Alg() != km.algorithm {
		return fmt.Errorf("jwtx: signer algorithm %s does not match %s", s.Alg(), km.algorithm)
	}
	if err := km.KeySet.AddSigner(s); err != nil {
		return err
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	km.signers = append(km.signers, s)
	return nil
}

// GenerateSigner creates a fresh key, stores it when the manager is
// persistent, and starts signing with it.
func (km *KeyManager) GenerateSigner(ctx context.Context) (Signer, error) {
	signer, pemBytes, err := generateSigner(km.algorithm)
	if err != nil {
		return nil, err
	}

	if km.keys != nil {
		sealed, err := km.encrypter.EncryptPrivateKey(pemBytes, signer.KID())
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to encrypt key %s: %w", signer.KID(), err)
		}
		err = km.keys.CreateSigningKey(ctx, SigningKeyRecord{
			KID:                 signer.KID(),
			Algorithm:           signer.Alg(),
			PrivateKeyEncrypted: sealed,
			CreatedAt:           km.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to store key %s: %w", signer.KID(), err)
		}
	}

	if err := km.AddSigner(signer); err != nil {
		return nil, err
	}
	return signer, nil
}

// RetireSigner stops signing with kid. Its public key stays in the KeySet
// until expiresAt so tokens it already signed keep verifying. The last
// active signer cannot be retired.
func (km *KeyManager) RetireSigner(ctx context.Context, kid string, expiresAt time.Time) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	i := slices.IndexFunc(km.signers, func(s Signer) bool { return s.KID() == kid })
	if i < 0 {
		return ErrNoKey
	}
	if len(km.signers) == 1 {
		return fmt.Errorf("jwtx: cannot retire the last signing key %s", kid)
	}

	now := km.now()
	if km.keys != nil {
		if err := km.keys.RetireSigningKey(ctx, kid, now, expiresAt); err != nil {
			return fmt.Errorf("jwtx: failed to retire stored key %s: %w", kid, err)
		}
	}

	km.signers = slices.Delete(km.signers, i, i+1)
	km.retired = append(km.retired, RetiredKey{KID: kid, RetiredAt: now, ExpiresAt: expiresAt})
	return nil
}

// PruneRetired drops retired keys whose grace period ended by now from the
// KeySet and the store, and returns how many were removed.
func (km *KeyManager) PruneRetired(ctx context.Context, now time.Time) (int, error) {
	km.mu.Lock()
	defer km.mu.Unlock()

	var (
		kept    []RetiredKey
		removed int
		errs    []error
	)
	for _, rk := range km.retired {
		if now.Before(rk.ExpiresAt) {
			kept = append(kept, rk)
			continue
		}
		if km.keys != nil {
			if err := km.keys.DeleteSigningKey(ctx, rk.KID); err != nil {
				errs = append(errs, fmt.Errorf("jwtx: failed to delete stored key %s: %w", rk.KID, err))
				kept = append(kept, rk)
				continue
			}
		}
		if km.KeySet.Remove(rk.KID) {
			removed++
		}
	}
	km.retired = kept
	return removed, errors.Join(errs...)
}

// Retired lists keys waiting out their grace period.
func (km *KeyManager) Retired() []RetiredKey {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return slices.Clone(km.retired)
}

// Verify checks a token against the published keys.
func (km *KeyManager) Verify(token string) (Claims, error) {
	return km.Verifier.Verify(token)
}
