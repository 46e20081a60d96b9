package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viant/nexus/service/signedhttp"
	"github.com/viant/nexus/tracing"
)

// DefaultMaxBodyBytes caps invoke request bodies at 10 MiB.
const DefaultMaxBodyBytes int64 = 10 << 20

// Tool is a hosted tool. Invoke receives the raw request body and returns
// an HTTP status together with the JSON response bytes.
type Tool interface {
	FQN() string
	Path() string
	Meta(baseURL string) interface{}
	Health(ctx context.Context) error
	Invoke(ctx context.Context, body []byte) (int, []byte)
}

// Authorizer is an optional tool hook consulted after a signed request is
// authenticated. A non-nil error rejects the invocation with 403.
type Authorizer interface {
	Authorize(ctx context.Context, auth signedhttp.AuthContext) error
}

// Host mounts tools on a chi router. Each tool serves GET {base}/health,
// GET {base}/meta and POST {base}/invoke.
type Host struct {
	router       *chi.Mux
	maxBodyBytes int64
	paths        []string
	registered   map[string]bool
	finalized    bool
}

// Option customises a host.
type Option func(*Host)

// WithMaxBodyBytes overrides the invoke body size limit.
func WithMaxBodyBytes(limit int64) Option {
	return func(h *Host) {
		h.maxBodyBytes = limit
	}
}

// New creates an empty host.
func New(options ...Option) *Host {
	result := &Host{
		router:       chi.NewRouter(),
		maxBodyBytes: DefaultMaxBodyBytes,
		registered:   map[string]bool{},
	}
	for _, option := range options {
		option(result)
	}
	return result
}

// Mount registers a tool. A nil responder serves unsigned invokes; with a
// responder, invoke requests are authenticated and responses signed.
func (h *Host) Mount(tool Tool, responder *signedhttp.Responder) {
	base := "/" + strings.Trim(tool.Path(), "/")
	if base != "/" {
		base += "/"
	}
	h.paths = append(h.paths, tool.Path())
	h.route(http.MethodGet, base+"health", h.healthHandler(tool))
	h.route(http.MethodGet, base+"meta", h.metaHandler(tool))
	h.route(http.MethodPost, base+"invoke", h.invokeHandler(tool, responder))
}

// Handler finalises the routes and returns the HTTP handler. Root health
// and tool listing routes are added unless a tool already occupies them.
func (h *Host) Handler() http.Handler {
	if !h.finalized {
		h.finalized = true
		if !h.registered[http.MethodGet+" /health"] {
			h.route(http.MethodGet, "/health", func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(http.StatusOK)
			})
		}
		if !h.registered[http.MethodGet+" /tools"] {
			paths := append([]string(nil), h.paths...)
			h.route(http.MethodGet, "/tools", func(writer http.ResponseWriter, request *http.Request) {
				writeJSON(writer, http.StatusOK, paths)
			})
		}
	}
	return h.router
}

func (h *Host) route(method, pattern string, handler http.HandlerFunc) {
	h.registered[method+" "+pattern] = true
	h.router.Method(method, pattern, handler)
}

func (h *Host) healthHandler(tool Tool) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if err := tool.Health(request.Context()); err != nil {
			writer.WriteHeader(http.StatusInternalServerError)
			return
		}
		writer.WriteHeader(http.StatusOK)
	}
}

func (h *Host) metaHandler(tool Tool) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		// The most external host and scheme are what clients will call.
		hostName := request.Header.Get("X-Forwarded-Host")
		if hostName == "" {
			hostName = request.Host
		}
		if hostName == "" {
			writeError(writer, http.StatusBadRequest, "host_header_required", "Host header is required.")
			return
		}
		scheme := request.Header.Get("X-Forwarded-Proto")
		if scheme == "" {
			scheme = "http"
		}
		if scheme != "http" && scheme != "https" {
			writeError(writer, http.StatusBadRequest, "invalid_scheme", "Scheme must be either 'http' or 'https'.")
			return
		}
		basePath := strings.TrimSuffix(request.URL.Path, "meta")
		baseURL, err := url.Parse(scheme + "://" + hostName + basePath)
		if err != nil {
			writeError(writer, http.StatusBadRequest, "url_parsing_error", err.Error())
			return
		}
		writeJSON(writer, http.StatusOK, tool.Meta(baseURL.String()))
	}
}

func (h *Host) invokeHandler(tool Tool, responder *signedhttp.Responder) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if request.ContentLength < 0 {
			writeError(writer, http.StatusLengthRequired, "length_required", "Content-Length header is required.")
			return
		}
		if request.ContentLength > h.maxBodyBytes {
			writeError(writer, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Sprintf("body exceeds %d bytes", h.maxBodyBytes))
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(writer, request.Body, h.maxBodyBytes))
		if err != nil {
			writeError(writer, http.StatusRequestEntityTooLarge, "body_too_large", err.Error())
			return
		}

		if responder == nil {
			status, response := h.runInvoke(request.Context(), tool, nil, body)
			writeRaw(writer, status, response)
			return
		}
		h.invokeSigned(writer, request, tool, responder, body)
	}
}

func (h *Host) invokeSigned(writer http.ResponseWriter, request *http.Request, tool Tool, responder *signedhttp.Responder, body []byte) {
	meta := signedhttp.RequestMeta{
		Method: request.Method,
		Path:   request.URL.Path,
		Query:  request.URL.RawQuery,
	}

	ctx, span := tracing.StartSpan(request.Context(), "host.authenticateInvoke", "SERVER")
	decision, err := responder.AuthenticateInvoke(meta, body, signedhttp.HeadersFromHTTP(request.Header))
	tracing.EndSpan(span, err)
	if err != nil {
		writeError(writer, http.StatusUnauthorized, "auth_failed", err.Error())
		return
	}

	switch {
	case decision.Cached != nil:
		writeSigned(writer, decision.Cached)
	case decision.Rejection != nil:
		status, response := rejectionBody(decision.Rejection.Kind)
		signed, err := decision.Rejection.Request.SignResponse(status, response)
		if err != nil {
			writeError(writer, http.StatusInternalServerError, "response_signing_error", err.Error())
			return
		}
		writeSigned(writer, signed)
	default:
		session := decision.Session
		defer session.Abort()
		auth := session.AuthContext()
		status, response := h.runInvoke(ctx, tool, &auth, body)
		signed, err := session.Finish(status, response)
		if err != nil {
			writeError(writer, http.StatusInternalServerError, "response_signing_error", err.Error())
			return
		}
		writeSigned(writer, signed)
	}
}

// runInvoke applies the optional authorization hook, then runs the tool.
func (h *Host) runInvoke(ctx context.Context, tool Tool, auth *signedhttp.AuthContext, body []byte) (int, []byte) {
	if auth != nil {
		if authorizer, ok := tool.(Authorizer); ok {
			if err := authorizer.Authorize(ctx, *auth); err != nil {
				return http.StatusForbidden, errorBody("permission_denied", err.Error())
			}
		}
	}
	return tool.Invoke(ctx, body)
}

func rejectionBody(kind signedhttp.RejectionKind) (int, []byte) {
	if kind == signedhttp.RejectionInFlight {
		return http.StatusConflict, errorBody("request_in_flight", "request with same nonce is still processing")
	}
	return http.StatusUnauthorized, errorBody("replay_rejected", "nonce already used with different request")
}

func errorBody(kind, details string) []byte {
	body, err := json.Marshal(map[string]string{"error": kind, "details": details})
	if err != nil {
		return []byte(`{"error":"serialization_error"}`)
	}
	return body
}

func writeError(writer http.ResponseWriter, status int, kind, details string) {
	writeRaw(writer, status, errorBody(kind, details))
}

func writeJSON(writer http.ResponseWriter, status int, value interface{}) {
	body, err := json.Marshal(value)
	if err != nil {
		status = http.StatusInternalServerError
		body = errorBody("serialization_error", err.Error())
	}
	writeRaw(writer, status, body)
}

func writeRaw(writer http.ResponseWriter, status int, body []byte) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_, _ = writer.Write(body)
}

func writeSigned(writer http.ResponseWriter, response *signedhttp.SignedResponse) {
	writer.Header().Set("Content-Type", "application/json")
	response.Headers.Apply(writer.Header())
	writer.WriteHeader(response.Status)
	_, _ = writer.Write(response.Body)
}
