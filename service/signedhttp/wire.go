package signedhttp

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/viant/nexus/internal/clock"
)

// Signature header names. The input and signature headers carry base64url
// bytes without padding.
const (
	HeaderSigVersion = "X-Nexus-Sig-V"
	HeaderSigInput   = "X-Nexus-Sig-Input"
	HeaderSig        = "X-Nexus-Sig"

	// SigVersionV1 is the protocol version string for v1.
	SigVersionV1 = "1"
)

var (
	domainRequestV1  = []byte("nexus.leader_tool.request.v1.")
	domainResponseV1 = []byte("nexus.leader_tool.response.v1.")
)

// RequestClaims are the signed claims of a leader to tool invocation
// request. Time fields are milliseconds since the Unix epoch (UTC).
type RequestClaims struct {
	LeaderID   string `json:"leader_id"`
	LeaderKid  uint64 `json:"leader_kid"`
	ToolID     string `json:"tool_id"`
	IatMs      uint64 `json:"iat_ms"`
	ExpMs      uint64 `json:"exp_ms"`
	Nonce      string `json:"nonce"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Query      string `json:"query"`
	BodySHA256 string `json:"body_sha256"`
}

// ResponseClaims are the signed claims of a tool to leader invocation
// response. The response is bound to its request by the echoed nonce and
// the hash of the request sig-input bytes.
type ResponseClaims struct {
	ToolID            string `json:"tool_id"`
	ToolKid           uint64 `json:"tool_kid"`
	IatMs             uint64 `json:"iat_ms"`
	ExpMs             uint64 `json:"exp_ms"`
	Nonce             string `json:"nonce"`
	ReqSigInputSHA256 string `json:"req_sig_input_sha256"`
	Status            int    `json:"status"`
	BodySHA256        string `json:"body_sha256"`
}

// RequestMeta is the request metadata bound into the signature. Path is
// the request path (e.g. "/invoke"), query the raw query string without
// the leading '?'.
type RequestMeta struct {
	Method string
	Path   string
	Query  string
}

// Headers holds encoded signature header values.
type Headers struct {
	SigVersion string
	SigInput   string
	Sig        string
}

// HeadersFromHTTP extracts signature headers from an HTTP header map.
func HeadersFromHTTP(header http.Header) Headers {
	return Headers{
		SigVersion: header.Get(HeaderSigVersion),
		SigInput:   header.Get(HeaderSigInput),
		Sig:        header.Get(HeaderSig),
	}
}

// Apply sets the signature headers on an HTTP header map.
func (h Headers) Apply(header http.Header) {
	header.Set(HeaderSigVersion, h.SigVersion)
	header.Set(HeaderSigInput, h.SigInput)
	header.Set(HeaderSig, h.Sig)
}

func encodeHeaders(sigInput, signature []byte) Headers {
	return Headers{
		SigVersion: SigVersionV1,
		SigInput:   base64.RawURLEncoding.EncodeToString(sigInput),
		Sig:        base64.RawURLEncoding.EncodeToString(signature),
	}
}

// decodeHeaders checks the version and base64url-decodes the sig-input
// and signature values. It does not parse claims or verify anything.
func decodeHeaders(headers Headers) (sigInput, signature []byte, err error) {
	if headers.SigVersion == "" {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingHeader, HeaderSigVersion)
	}
	if headers.SigVersion != SigVersionV1 {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedVersion, headers.SigVersion)
	}
	if headers.SigInput == "" {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingHeader, HeaderSigInput)
	}
	if headers.Sig == "" {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingHeader, HeaderSig)
	}
	if sigInput, err = base64.RawURLEncoding.DecodeString(headers.SigInput); err != nil {
		return nil, nil, fmt.Errorf("invalid %v header: %w", HeaderSigInput, err)
	}
	if signature, err = base64.RawURLEncoding.DecodeString(headers.Sig); err != nil {
		return nil, nil, fmt.Errorf("invalid %v header: %w", HeaderSig, err)
	}
	if len(signature) != ed25519.SignatureSize {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidSignatureLength, len(signature))
	}
	return sigInput, signature, nil
}

// VerifyOptions is the verification policy: claims say what the sender
// intends, options say what the verifier accepts.
type VerifyOptions struct {
	// NowMs is the verifier wall-clock time.
	NowMs uint64
	// MaxClockSkewMs bounds the skew when comparing NowMs to iat/exp.
	MaxClockSkewMs uint64
	// MaxValidityMs bounds the accepted window exp_ms - iat_ms.
	MaxValidityMs uint64
}

// DefaultVerifyOptions allows 30s of clock skew and a 60s validity window.
func DefaultVerifyOptions() VerifyOptions {
	return VerifyOptions{
		NowMs:          clock.NowMillis(),
		MaxClockSkewMs: 30_000,
		MaxValidityMs:  60_000,
	}
}

func validateTimeWindow(iatMs, expMs uint64, opts *VerifyOptions) error {
	if expMs < iatMs {
		return ErrInvalidTimeWindow
	}
	if validity := expMs - iatMs; validity > opts.MaxValidityMs {
		return fmt.Errorf("%w: %dms > %dms", ErrValidityTooLarge, validity, opts.MaxValidityMs)
	}
	if iatMs > opts.NowMs+opts.MaxClockSkewMs {
		return fmt.Errorf("%w: iat=%dms now=%dms", ErrNotYetValid, iatMs, opts.NowMs)
	}
	var floor uint64
	if opts.NowMs > opts.MaxClockSkewMs {
		floor = opts.NowMs - opts.MaxClockSkewMs
	}
	if expMs < floor {
		return fmt.Errorf("%w: exp=%dms now=%dms", ErrExpired, expMs, opts.NowMs)
	}
	return nil
}

func signedMessage(domain, sigInput []byte) []byte {
	message := make([]byte, 0, len(domain)+len(sigInput))
	message = append(message, domain...)
	message = append(message, sigInput...)
	return message
}

func signClaims(domain []byte, claims interface{}, key ed25519.PrivateKey) (sigInput, signature []byte, err error) {
	if sigInput, err = json.Marshal(claims); err != nil {
		return nil, nil, fmt.Errorf("failed to encode claims: %w", err)
	}
	signature = ed25519.Sign(key, signedMessage(domain, sigInput))
	return sigInput, signature, nil
}

func verifySignature(domain, sigInput, signature, publicKey []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: %d byte public key", ErrInvalidSignature, len(publicKey))
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), signedMessage(domain, sigInput), signature) {
		return ErrInvalidSignature
	}
	return nil
}

// SHA256Hex hex-encodes sha256(data).
func SHA256Hex(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

func digestOf(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func parseHex32(value string) ([32]byte, error) {
	var result [32]byte
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return result, err
	}
	if len(decoded) != 32 {
		return result, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(result[:], decoded)
	return result, nil
}
