package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/teamforge/internal/services"
	"github.com/stretchr/testify/require"
)

// TestJWTService signs and checks the tokens APIClient callers present.
func TestJWTService() *services.JWTService {
	return services.NewJWTService("teamforge-test-secret", 15*time.Minute)
}

// APIClient drives an http.Handler with tokens minted by TestJWTService.
type APIClient struct {
	t       *testing.T
	handler http.Handler
}

func NewAPIClient(t *testing.T, handler http.Handler) *APIClient {
	return &APIClient{t: t, handler: handler}
}

// Caller sends requests as one user.
type Caller struct {
	client *APIClient
	token  string
}

func (c *APIClient) As(userID string) *Caller {
	return c.caller(userID, false)
}

func (c *APIClient) AsAdmin(userID string) *Caller {
	return c.caller(userID, true)
}

func (c *APIClient) caller(userID string, admin bool) *Caller {
	c.t.Helper()
	token, err := TestJWTService().GenerateAccessToken(userID, admin)
	require.NoError(c.t, err, "sign test token")
	return &Caller{client: c, token: token}
}

func (c *Caller) Do(method, path string, body any) *httptest.ResponseRecorder {
	t := c.client.t
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err, "encode request body")
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	rec := httptest.NewRecorder()
	c.client.handler.ServeHTTP(rec, req)
	return rec
}

func (c *Caller) Get(path string) *httptest.ResponseRecorder {
	return c.Do(http.MethodGet, path, nil)
}

func (c *Caller) Post(path string, body any) *httptest.ResponseRecorder {
	return c.Do(http.MethodPost, path, body)
}

func (c *Caller) Patch(path string, body any) *httptest.ResponseRecorder {
	return c.Do(http.MethodPatch, path, body)
}

// Decode requires the response to carry status and decodes its JSON body.
func Decode[T any](t *testing.T, rec *httptest.ResponseRecorder, status int) T {
	t.Helper()
	require.Equal(t, status, rec.Code, "unexpected status, body: %s", rec.Body.String())

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "decode response body")
	return v
}
