package jwtx

// Claims is the flat claim set carried in a token body. Registered claims
// ("sub", "iat", "exp", "jti", "iss") sit next to custom ones.
type Claims = map[string]any

// ClaimIssuer is set by the signer rather than the payload.
const ClaimIssuer = "iss"
