package signedhttp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/viant/nexus/internal/clock"
	"github.com/viant/nexus/internal/idgen"
)

// Policy holds the verification knobs shared by invoker and responder.
type Policy struct {
	MaxClockSkewMs uint64
	MaxValidityMs  uint64
}

// DefaultPolicy allows 30s of clock skew and a 60s validity window.
func DefaultPolicy() Policy {
	return Policy{
		MaxClockSkewMs: 30_000,
		MaxValidityMs:  60_000,
	}
}

// Engine is the entry point for signed HTTP v1. A process typically
// creates one engine and derives invoker or responder helpers from it.
type Engine struct {
	policy Policy
	now    func() uint64
}

// EngineOption customises an engine.
type EngineOption func(*Engine)

// WithNow overrides the time source, useful for tests.
func WithNow(now func() uint64) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine with the supplied policy.
func NewEngine(policy Policy, options ...EngineOption) *Engine {
	result := &Engine{
		policy: policy,
		now:    clock.NowMillis,
	}
	for _, option := range options {
		option(result)
	}
	return result
}

// Policy returns the engine policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

func (e *Engine) verifyOptions() *VerifyOptions {
	return &VerifyOptions{
		NowMs:          e.now(),
		MaxClockSkewMs: e.policy.MaxClockSkewMs,
		MaxValidityMs:  e.policy.MaxValidityMs,
	}
}

// InvokerKeyResolver resolves invoker public keys when authenticating
// requests.
type InvokerKeyResolver interface {
	InvokerPublicKey(invokerID string, kid uint64) ([]byte, bool)
}

// ResponderKeyResolver resolves responder public keys when verifying
// responses.
type ResponderKeyResolver interface {
	ResponderPublicKey(responderID string, kid uint64) ([]byte, bool)
}

// StaticResponderKey resolves a single responder key.
type StaticResponderKey struct {
	ResponderID string
	Kid         uint64
	PublicKey   [32]byte
}

func (s *StaticResponderKey) ResponderPublicKey(responderID string, kid uint64) ([]byte, bool) {
	if responderID != s.ResponderID || kid != s.Kid {
		return nil, false
	}
	return s.PublicKey[:], true
}

// Invoker signs outbound requests and verifies signed responses.
type Invoker struct {
	engine  *Engine
	id      string
	kid     uint64
	keypair *Keypair
}

// Invoker creates an invoker helper bound to an identity and signing key.
func (e *Engine) Invoker(invokerID string, kid uint64, keypair *Keypair) *Invoker {
	return &Invoker{
		engine:  e,
		id:      invokerID,
		kid:     kid,
		keypair: keypair,
	}
}

// Responder authenticates inbound requests, applies replay rules and
// signs responses.
type Responder struct {
	engine      *Engine
	id          string
	kid         uint64
	keypair     *Keypair
	invokerKeys InvokerKeyResolver
	replay      ReplayStore
}

// Responder creates a responder helper. A nil replay store falls back to
// the in-memory store.
func (e *Engine) Responder(responderID string, kid uint64, keypair *Keypair, invokerKeys InvokerKeyResolver, replay ReplayStore) *Responder {
	if replay == nil {
		replay = NewMemoryReplayStore()
	}
	return &Responder{
		engine:      e,
		id:          responderID,
		kid:         kid,
		keypair:     keypair,
		invokerKeys: invokerKeys,
		replay:      replay,
	}
}

// BeginInvoke starts a signed invocation with a fresh random nonce. The
// returned session is stable: its headers do not change between calls,
// which makes network level retries safe.
func (i *Invoker) BeginInvoke(responderID string, meta RequestMeta, body []byte) (*OutboundSession, error) {
	return i.BeginInvokeWithNonce(responderID, meta, body, idgen.Nonce())
}

// BeginInvokeWithNonce starts a signed invocation with an explicit nonce,
// for tests and retry models that select the nonce deterministically.
func (i *Invoker) BeginInvokeWithNonce(responderID string, meta RequestMeta, body []byte, nonce string) (*OutboundSession, error) {
	iatMs := i.engine.now()
	claims := &RequestClaims{
		LeaderID:   i.id,
		LeaderKid:  i.kid,
		ToolID:     responderID,
		IatMs:      iatMs,
		ExpMs:      iatMs + i.engine.policy.MaxValidityMs,
		Nonce:      nonce,
		Method:     meta.Method,
		Path:       meta.Path,
		Query:      meta.Query,
		BodySHA256: SHA256Hex(body),
	}
	sigInput, signature, err := signClaims(domainRequestV1, claims, i.keypair.PrivateKey())
	if err != nil {
		return nil, err
	}
	return &OutboundSession{
		engine:              i.engine,
		expectedResponderID: responderID,
		nonce:               nonce,
		sigInput:            sigInput,
		sigInputSHA256:      digestOf(sigInput),
		headers:             encodeHeaders(sigInput, signature),
	}, nil
}

// OutboundSession is a per-invocation invoker session: request signing
// plus response verification.
type OutboundSession struct {
	engine              *Engine
	expectedResponderID string
	nonce               string
	sigInput            []byte
	sigInputSHA256      [32]byte
	headers             Headers
}

// RequestHeaders returns the signature headers for the request.
func (s *OutboundSession) RequestHeaders() Headers {
	return s.headers
}

// Nonce returns the nonce used for this invocation.
func (s *OutboundSession) Nonce() string {
	return s.nonce
}

// RequestSigInput returns the raw signed claims bytes, useful for
// auditing alongside RequestSigInputSHA256.
func (s *OutboundSession) RequestSigInput() []byte {
	return s.sigInput
}

// RequestSigInputSHA256 returns sha256 of the claims bytes; responses
// are bound to it.
func (s *OutboundSession) RequestSigInputSHA256() [32]byte {
	return s.sigInputSHA256
}

// VerifiedResponse is the result of verifying a responder's signed
// response for an outbound session.
type VerifiedResponse struct {
	ResponderID            string
	ResponderKid           uint64
	Nonce                  string
	Status                 int
	ResponderPublicKey     []byte
	ResponseSigInputSHA256 [32]byte
}

// VerifyResponse checks the responder's signed response and ensures it is
// bound to this request.
func (s *OutboundSession) VerifyResponse(status int, headers Headers, body []byte, responderKeys ResponderKeyResolver) (*VerifiedResponse, error) {
	sigInput, signature, err := decodeHeaders(headers)
	if err != nil {
		return nil, err
	}
	claims := &ResponseClaims{}
	if err := json.Unmarshal(sigInput, claims); err != nil {
		return nil, fmt.Errorf("invalid signed input JSON: %w", err)
	}
	if claims.Status != status {
		return nil, fmt.Errorf("%w: claimed status %d, actual %d", ErrClaimsMismatch, claims.Status, status)
	}
	if claims.ToolID != s.expectedResponderID {
		return nil, fmt.Errorf("%w: claimed tool %v, expected %v", ErrClaimsMismatch, claims.ToolID, s.expectedResponderID)
	}
	if err := verifyBodyHash(claims.BodySHA256, body); err != nil {
		return nil, err
	}
	if err := validateTimeWindow(claims.IatMs, claims.ExpMs, s.engine.verifyOptions()); err != nil {
		return nil, err
	}
	claimedBinding, err := parseHex32(claims.ReqSigInputSHA256)
	if err != nil {
		return nil, fmt.Errorf("invalid req_sig_input_sha256 hex: %w", err)
	}
	if claimedBinding != s.sigInputSHA256 {
		return nil, ErrRequestBindingMismatch
	}
	publicKey, ok := responderKeys.ResponderPublicKey(claims.ToolID, claims.ToolKid)
	if !ok {
		return nil, fmt.Errorf("%w: tool %v kid %d", ErrUnknownKey, claims.ToolID, claims.ToolKid)
	}
	if err := verifySignature(domainResponseV1, sigInput, signature, publicKey); err != nil {
		return nil, err
	}
	return &VerifiedResponse{
		ResponderID:            claims.ToolID,
		ResponderKid:           claims.ToolKid,
		Nonce:                  claims.Nonce,
		Status:                 claims.Status,
		ResponderPublicKey:     publicKey,
		ResponseSigInputSHA256: digestOf(sigInput),
	}, nil
}

// AuthContext is the authenticated request context handed to business
// level authorization hooks.
type AuthContext struct {
	InvokerID             string
	InvokerKid            uint64
	ResponderID           string
	IatMs                 uint64
	ExpMs                 uint64
	Nonce                 string
	Method                string
	Path                  string
	Query                 string
	InvokerPublicKey      []byte
	RequestSigInputSHA256 [32]byte
}

// verifiedRequest is the authenticated inbound request envelope.
type verifiedRequest struct {
	invokerID        string
	invokerKid       uint64
	iatMs            uint64
	expMs            uint64
	nonce            string
	method           string
	path             string
	query            string
	invokerPublicKey []byte
	sigInputSHA256   [32]byte
}

// AuthenticatedRequest is a verified inbound request without an in-flight
// reservation. Replay rejections still carry it so the responder can sign
// an error response bound to the authenticated request.
type AuthenticatedRequest struct {
	responder *Responder
	verified  *verifiedRequest
}

// AuthContext returns the authenticated request context.
func (r *AuthenticatedRequest) AuthContext() AuthContext {
	return AuthContext{
		InvokerID:             r.verified.invokerID,
		InvokerKid:            r.verified.invokerKid,
		ResponderID:           r.responder.id,
		IatMs:                 r.verified.iatMs,
		ExpMs:                 r.verified.expMs,
		Nonce:                 r.verified.nonce,
		Method:                r.verified.method,
		Path:                  r.verified.path,
		Query:                 r.verified.query,
		InvokerPublicKey:      r.verified.invokerPublicKey,
		RequestSigInputSHA256: r.verified.sigInputSHA256,
	}
}

// SignResponse signs a response bound to this request without touching
// the replay store.
func (r *AuthenticatedRequest) SignResponse(status int, body []byte) (*SignedResponse, error) {
	return r.responder.signResponseFor(r.verified, status, body)
}

// RejectionKind classifies replay related rejections.
type RejectionKind int

const (
	// RejectionReplayConflict marks a nonce reuse with a different request.
	RejectionReplayConflict RejectionKind = iota
	// RejectionInFlight marks a concurrent retry of an executing request.
	RejectionInFlight
)

// Rejection is a replay related rejection after authentication.
type Rejection struct {
	Kind    RejectionKind
	Request *AuthenticatedRequest
}

// Decision is the responder verdict for an inbound request: exactly one
// of Session, Cached or Rejection is set.
type Decision struct {
	// Session is set when the request should be executed; call Finish to
	// sign and cache the response, or Abort to drop the reservation.
	Session *InboundSession
	// Cached is set for an idempotent retry.
	Cached *SignedResponse
	// Rejection is set for replay conflicts and in-flight duplicates.
	Rejection *Rejection
}

// InboundSession is a per-invocation responder session holding the
// in-flight replay reservation.
type InboundSession struct {
	request     *AuthenticatedRequest
	nonceKey    string
	requestHash [32]byte
	expiresAtMs uint64
	finished    bool
}

// AuthContext returns the authenticated request context.
func (s *InboundSession) AuthContext() AuthContext {
	return s.request.AuthContext()
}

// Finish signs the response, caches it for idempotent retries and
// releases the in-flight reservation.
func (s *InboundSession) Finish(status int, body []byte) (*SignedResponse, error) {
	response, err := s.request.SignResponse(status, body)
	if err != nil {
		return nil, err
	}
	s.request.responder.replay.Complete(s.nonceKey, s.requestHash, s.expiresAtMs, response)
	s.finished = true
	return response, nil
}

// Abort drops the in-flight reservation so a later retry can proceed.
// Callers must Finish or Abort every session; defer Abort after a
// successful authentication.
func (s *InboundSession) Abort() {
	if s.finished {
		return
	}
	s.finished = true
	s.request.responder.replay.Remove(s.nonceKey)
}

// AuthenticateInvoke verifies a signed invocation request and applies the
// replay rules.
func (r *Responder) AuthenticateInvoke(meta RequestMeta, body []byte, headers Headers) (*Decision, error) {
	sigInput, signature, err := decodeHeaders(headers)
	if err != nil {
		return nil, err
	}
	verified, err := r.verifyInboundRequest(sigInput, signature, meta, body)
	if err != nil {
		return nil, err
	}

	nonceKey := verified.invokerID + ":" + verified.nonce
	request := &AuthenticatedRequest{responder: r, verified: verified}

	decision, cached := r.replay.BeginOrReplay(nonceKey, verified.sigInputSHA256, verified.expMs, r.engine.now())
	switch decision {
	case ReplayProceed:
		return &Decision{Session: &InboundSession{
			request:     request,
			nonceKey:    nonceKey,
			requestHash: verified.sigInputSHA256,
			expiresAtMs: verified.expMs,
		}}, nil
	case ReplayReturn:
		return &Decision{Cached: cached}, nil
	case ReplayReject:
		return &Decision{Rejection: &Rejection{Kind: RejectionReplayConflict, Request: request}}, nil
	default:
		return &Decision{Rejection: &Rejection{Kind: RejectionInFlight, Request: request}}, nil
	}
}

func (r *Responder) verifyInboundRequest(sigInput, signature []byte, meta RequestMeta, body []byte) (*verifiedRequest, error) {
	claims := &RequestClaims{}
	if err := json.Unmarshal(sigInput, claims); err != nil {
		return nil, fmt.Errorf("invalid signed input JSON: %w", err)
	}
	if claims.ToolID != r.id {
		return nil, fmt.Errorf("%w: claimed tool %v, expected %v", ErrClaimsMismatch, claims.ToolID, r.id)
	}
	if claims.Method != meta.Method {
		return nil, fmt.Errorf("%w: claimed method %v, actual %v", ErrClaimsMismatch, claims.Method, meta.Method)
	}
	if claims.Path != meta.Path {
		return nil, fmt.Errorf("%w: claimed path %v, actual %v", ErrClaimsMismatch, claims.Path, meta.Path)
	}
	if claims.Query != meta.Query {
		return nil, fmt.Errorf("%w: claimed query %q, actual %q", ErrClaimsMismatch, claims.Query, meta.Query)
	}
	if err := verifyBodyHash(claims.BodySHA256, body); err != nil {
		return nil, err
	}
	if err := validateTimeWindow(claims.IatMs, claims.ExpMs, r.engine.verifyOptions()); err != nil {
		return nil, err
	}
	publicKey, ok := r.invokerKeys.InvokerPublicKey(claims.LeaderID, claims.LeaderKid)
	if !ok {
		return nil, fmt.Errorf("%w: leader %v kid %d", ErrUnknownKey, claims.LeaderID, claims.LeaderKid)
	}
	if err := verifySignature(domainRequestV1, sigInput, signature, publicKey); err != nil {
		return nil, err
	}
	return &verifiedRequest{
		invokerID:        claims.LeaderID,
		invokerKid:       claims.LeaderKid,
		iatMs:            claims.IatMs,
		expMs:            claims.ExpMs,
		nonce:            claims.Nonce,
		method:           claims.Method,
		path:             claims.Path,
		query:            claims.Query,
		invokerPublicKey: publicKey,
		sigInputSHA256:   digestOf(sigInput),
	}, nil
}

func (r *Responder) signResponseFor(verified *verifiedRequest, status int, body []byte) (*SignedResponse, error) {
	iatMs := r.engine.now()
	claims := &ResponseClaims{
		ToolID:            r.id,
		ToolKid:           r.kid,
		IatMs:             iatMs,
		ExpMs:             iatMs + r.engine.policy.MaxValidityMs,
		Nonce:             verified.nonce,
		ReqSigInputSHA256: hex.EncodeToString(verified.sigInputSHA256[:]),
		Status:            status,
		BodySHA256:        SHA256Hex(body),
	}
	sigInput, signature, err := signClaims(domainResponseV1, claims, r.keypair.PrivateKey())
	if err != nil {
		return nil, err
	}
	return &SignedResponse{
		Status:  status,
		Body:    body,
		Headers: encodeHeaders(sigInput, signature),
	}, nil
}

func verifyBodyHash(claimed string, body []byte) error {
	claimedHash, err := parseHex32(claimed)
	if err != nil {
		return fmt.Errorf("invalid body_sha256 hex: %w", err)
	}
	if claimedHash != digestOf(body) {
		return ErrBodyHashMismatch
	}
	return nil
}
