// Package jwt implements the token codec of goToken on top of golang-jwt:
// it signs claim maps into compact JWS tokens and verifies signatures,
// algorithms and key ids on the way back.
//
// Claim semantics (exp, nbf, iat, required claims) belong to the lifecycle
// core. The parser runs without claims validation.
package jwt
