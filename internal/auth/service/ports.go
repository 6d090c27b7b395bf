package service

// Signer signs and verifies JWT claims. jwtx.KeyManager implements it.
// Verify must check signature and expiry.
type Signer interface {
	Sign(claims map[string]any) (string, error)
	Verify(token string) (map[string]any, error)
}

// Metrics receives security relevant counters. Labels are low cardinality
// constants, never user data.
type Metrics interface {
	TokensIssued(grant string)
	RefreshRejected(reason string)
	TokenRevoked(reason string)
	AuthCodeConsumed(ok bool)
	LinkResolved(outcome string)
}

// Grants, rejection reasons and link outcomes reported to Metrics.
const (
	GrantLogin    = "login"
	GrantRefresh  = "refresh"
	GrantAuthCode = "auth_code"
	GrantLink     = "link"

	RejectInvalid = "invalid"
	RejectRevoked = "revoked"
	RejectReuse   = "reuse"

	LinkConfirmed = "confirmed"
	LinkRejected  = "rejected"
)

type noopMetrics struct{}

func (noopMetrics) TokensIssued(string)    {}
func (noopMetrics) RefreshRejected(string) {}
func (noopMetrics) TokenRevoked(string)    {}
func (noopMetrics) AuthCodeConsumed(bool)  {}
func (noopMetrics) LinkResolved(string)    {}

// NoopMetrics discards everything.
var NoopMetrics Metrics = noopMetrics{}

func orNoop(m Metrics) Metrics {
	if m == nil {
		return NoopMetrics
	}
	return m
}
