package signedhttp

import "errors"

var (
	// ErrMissingHeader reports an absent signature header.
	ErrMissingHeader = errors.New("missing signature header")
	// ErrUnsupportedVersion reports a signature version other than "1".
	ErrUnsupportedVersion = errors.New("unsupported signature version")
	// ErrInvalidSignatureLength reports signature bytes that are not 64 bytes.
	ErrInvalidSignatureLength = errors.New("invalid signature length")
	// ErrClaimsMismatch reports claims that disagree with the observed
	// request (tool id, method, path, query or status).
	ErrClaimsMismatch = errors.New("signed claims do not match the request")
	// ErrBodyHashMismatch reports a body whose hash differs from the claims.
	ErrBodyHashMismatch = errors.New("body hash mismatch")
	// ErrInvalidTimeWindow reports exp_ms < iat_ms.
	ErrInvalidTimeWindow = errors.New("invalid time window")
	// ErrValidityTooLarge reports a validity window above the policy maximum.
	ErrValidityTooLarge = errors.New("validity window too large")
	// ErrNotYetValid reports iat_ms in the future beyond the allowed skew.
	ErrNotYetValid = errors.New("claims not yet valid")
	// ErrExpired reports exp_ms in the past beyond the allowed skew.
	ErrExpired = errors.New("claims expired")
	// ErrUnknownKey reports an unresolvable (id, kid) pair.
	ErrUnknownKey = errors.New("unknown signing key")
	// ErrInvalidSignature reports a signature that fails verification.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrRequestBindingMismatch reports a response bound to a different
	// request.
	ErrRequestBindingMismatch = errors.New("response not bound to this request")
)
