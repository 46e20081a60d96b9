package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/nexus/service/signedhttp"
)

type echoTool struct {
	fqn       string
	path      string
	healthErr error
	denyErr   error
	invoked   atomic.Int64
}

func (t *echoTool) FQN() string  { return t.fqn }
func (t *echoTool) Path() string { return t.path }

func (t *echoTool) Meta(baseURL string) interface{} {
	return map[string]string{"fqn": t.fqn, "url": baseURL + "invoke"}
}

func (t *echoTool) Health(ctx context.Context) error { return t.healthErr }

func (t *echoTool) Authorize(ctx context.Context, auth signedhttp.AuthContext) error {
	return t.denyErr
}

func (t *echoTool) Invoke(ctx context.Context, body []byte) (int, []byte) {
	t.invoked.Add(1)
	response, _ := json.Marshal(map[string]string{"echo": string(body)})
	return http.StatusOK, response
}

type hostFixture struct {
	server   *httptest.Server
	tool     *echoTool
	invoker  *signedhttp.Invoker
	resolver *signedhttp.StaticResponderKey
}

func newHostFixture(t *testing.T, tool *echoTool, options ...Option) *hostFixture {
	engine := signedhttp.NewEngine(signedhttp.DefaultPolicy())
	invokerKeypair := signedhttp.NewKeypair([32]byte{1, 1, 1})
	responderKeypair := signedhttp.NewKeypair([32]byte{2, 2, 2})

	allowed := signedhttp.NewAllowedLeaders().
		Add("leader-1", 1, invokerKeypair.PublicKeyBytes())
	responder := engine.Responder(tool.FQN(), 7, responderKeypair, allowed, nil)

	hosted := New(options...)
	hosted.Mount(tool, responder)
	server := httptest.NewServer(hosted.Handler())
	t.Cleanup(server.Close)

	return &hostFixture{
		server:  server,
		tool:    tool,
		invoker: engine.Invoker("leader-1", 1, invokerKeypair),
		resolver: &signedhttp.StaticResponderKey{
			ResponderID: tool.FQN(),
			Kid:         7,
			PublicKey:   responderKeypair.PublicKeyBytes(),
		},
	}
}

func (f *hostFixture) signedInvoke(t *testing.T, nonce string, body []byte) (*http.Response, []byte, *signedhttp.OutboundSession) {
	meta := signedhttp.RequestMeta{Method: http.MethodPost, Path: "/invoke"}
	session, err := f.invoker.BeginInvokeWithNonce(f.tool.FQN(), meta, body, nonce)
	assert.Nil(t, err)

	request, err := http.NewRequest(http.MethodPost, f.server.URL+"/invoke", bytes.NewReader(body))
	assert.Nil(t, err)
	session.RequestHeaders().Apply(request.Header)

	response, err := http.DefaultClient.Do(request)
	assert.Nil(t, err)
	defer response.Body.Close()
	responseBody, err := io.ReadAll(response.Body)
	assert.Nil(t, err)
	return response, responseBody, session
}

func TestHost_UnsignedInvoke(t *testing.T) {
	tool := &echoTool{fqn: "xyz.example.echo@1", path: "/"}
	hosted := New()
	hosted.Mount(tool, nil)
	server := httptest.NewServer(hosted.Handler())
	defer server.Close()

	response, err := http.Post(server.URL+"/invoke", "application/json", bytes.NewReader([]byte(`{"in":1}`)))
	assert.Nil(t, err)
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, `{"echo":"{\"in\":1}"}`, string(body))
	assert.EqualValues(t, 1, tool.invoked.Load())

	health, err := http.Get(server.URL + "/health")
	assert.Nil(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	tools, err := http.Get(server.URL + "/tools")
	assert.Nil(t, err)
	toolsBody, _ := io.ReadAll(tools.Body)
	tools.Body.Close()
	assert.Equal(t, `["/"]`, string(toolsBody))
}

func TestHost_SignedInvokeRoundTrip(t *testing.T) {
	tool := &echoTool{fqn: "xyz.example.echo@1", path: "/"}
	fixture := newHostFixture(t, tool)

	body := []byte(`{"in":1}`)
	response, responseBody, session := fixture.signedInvoke(t, "nonce-1", body)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	verified, err := session.VerifyResponse(response.StatusCode,
		signedhttp.HeadersFromHTTP(response.Header), responseBody, fixture.resolver)
	assert.Nil(t, err)
	assert.Equal(t, tool.FQN(), verified.ResponderID)
	assert.Equal(t, "nonce-1", verified.Nonce)
	assert.EqualValues(t, 1, tool.invoked.Load())

	// exact retry serves the cached signed response without re-running the tool
	retry, retryBody, _ := fixture.signedInvoke(t, "nonce-1", body)
	assert.Equal(t, http.StatusOK, retry.StatusCode)
	assert.Equal(t, responseBody, retryBody)
	assert.Equal(t, response.Header.Get(signedhttp.HeaderSigInput), retry.Header.Get(signedhttp.HeaderSigInput))
	assert.EqualValues(t, 1, tool.invoked.Load())
}

func TestHost_SignedReplayConflict(t *testing.T) {
	tool := &echoTool{fqn: "xyz.example.echo@1", path: "/"}
	fixture := newHostFixture(t, tool)

	_, _, _ = fixture.signedInvoke(t, "nonce-1", []byte(`{"in":1}`))
	assert.EqualValues(t, 1, tool.invoked.Load())

	response, responseBody, session := fixture.signedInvoke(t, "nonce-1", []byte(`{"in":"different"}`))
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	assert.Contains(t, string(responseBody), "replay_rejected")
	assert.EqualValues(t, 1, tool.invoked.Load())

	// the rejection is signed and bound to the conflicting request
	verified, err := session.VerifyResponse(response.StatusCode,
		signedhttp.HeadersFromHTTP(response.Header), responseBody, fixture.resolver)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusUnauthorized, verified.Status)
}

func TestHost_SignedAuthorizeDenied(t *testing.T) {
	tool := &echoTool{fqn: "xyz.example.echo@1", path: "/", denyErr: fmt.Errorf("leader not allowed")}
	fixture := newHostFixture(t, tool)

	response, responseBody, session := fixture.signedInvoke(t, "nonce-1", []byte(`{"in":1}`))
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
	assert.Contains(t, string(responseBody), "permission_denied")
	assert.EqualValues(t, 0, tool.invoked.Load())

	// post-authentication errors are signed too
	_, err := session.VerifyResponse(response.StatusCode,
		signedhttp.HeadersFromHTTP(response.Header), responseBody, fixture.resolver)
	assert.Nil(t, err)
}

func TestHost_SignedRejectsMissingHeaders(t *testing.T) {
	tool := &echoTool{fqn: "xyz.example.echo@1", path: "/"}
	fixture := newHostFixture(t, tool)

	response, err := http.Post(fixture.server.URL+"/invoke", "application/json", bytes.NewReader([]byte(`{}`)))
	assert.Nil(t, err)
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	assert.Contains(t, string(body), "auth_failed")
	assert.EqualValues(t, 0, tool.invoked.Load())
}

func TestHost_BodyLimit(t *testing.T) {
	tool := &echoTool{fqn: "xyz.example.echo@1", path: "/"}
	fixture := newHostFixture(t, tool, WithMaxBodyBytes(16))

	large := bytes.Repeat([]byte("a"), 64)
	response, err := http.Post(fixture.server.URL+"/invoke", "application/json", bytes.NewReader(large))
	assert.Nil(t, err)
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, response.StatusCode)
	assert.Contains(t, string(body), "body_too_large")
}

func TestHost_Meta(t *testing.T) {
	tool := &echoTool{fqn: "xyz.example.echo@1", path: "/math/add"}
	hosted := New()
	hosted.Mount(tool, nil)
	server := httptest.NewServer(hosted.Handler())
	defer server.Close()

	request, _ := http.NewRequest(http.MethodGet, server.URL+"/math/add/meta", nil)
	request.Header.Set("X-Forwarded-Host", "tools.example.com")
	request.Header.Set("X-Forwarded-Proto", "https")
	response, err := http.DefaultClient.Do(request)
	assert.Nil(t, err)
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)

	var meta map[string]string
	assert.Nil(t, json.Unmarshal(body, &meta))
	assert.Equal(t, "https://tools.example.com/math/add/invoke", meta["url"])

	// scheme other than http/https is rejected
	request, _ = http.NewRequest(http.MethodGet, server.URL+"/math/add/meta", nil)
	request.Header.Set("X-Forwarded-Proto", "gopher")
	response, err = http.DefaultClient.Do(request)
	assert.Nil(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestHost_ToolHealthFailure(t *testing.T) {
	tool := &echoTool{fqn: "xyz.example.echo@1", path: "/math/add", healthErr: fmt.Errorf("backend down")}
	hosted := New()
	hosted.Mount(tool, nil)
	server := httptest.NewServer(hosted.Handler())
	defer server.Close()

	response, err := http.Get(server.URL + "/math/add/health")
	assert.Nil(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, response.StatusCode)
}
