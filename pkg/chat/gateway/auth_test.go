package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-go-golems/parley/pkg/session"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T, path string, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))

		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "typed@example.com", creds.Email)
		assert.Equal(t, "secret", creds.Password)

		writeJSON(t, w, status, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLoginStoresTokenAndServerEmail(t *testing.T) {
	server := newAuthServer(t, "/api/auth/login", http.StatusOK,
		`{"status":200,"message":"ok","token":"tok-1","data":{"email":"server@example.com"}}`)

	sess := session.NewMemoryStore()
	a, err := NewAuthClient(server.URL+"/api/", sess)
	require.NoError(t, err)

	resp, err := a.Login(context.Background(), Credentials{Email: "typed@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.Token)
	assert.Equal(t, "tok-1", sess.Token())
	assert.Equal(t, "server@example.com", sess.Email())
}

func TestLoginFallsBackToTypedEmail(t *testing.T) {
	server := newAuthServer(t, "/api/auth/login", http.StatusOK, `{"status":200,"token":"tok-2"}`)

	sess := session.NewMemoryStore()
	a, err := NewAuthClient(server.URL+"/api/", sess)
	require.NoError(t, err)

	_, err = a.Login(context.Background(), Credentials{Email: "typed@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "typed@example.com", sess.Email())
}

func TestLoginRejected(t *testing.T) {
	server := newAuthServer(t, "/api/auth/login", http.StatusUnauthorized, `{"message":"Invalid credentials"}`)

	sess := session.NewMemoryStore()
	a, err := NewAuthClient(server.URL+"/api/", sess)
	require.NoError(t, err)

	_, err = a.Login(context.Background(), Credentials{Email: "typed@example.com", Password: "secret"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	msg, ok := ServerMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Invalid credentials", msg)
	assert.False(t, sess.IsAuthenticated())
	assert.Equal(t, "", sess.Email())
}

func TestRegisterDoesNotSignIn(t *testing.T) {
	server := newAuthServer(t, "/api/auth/register", http.StatusCreated,
		`{"status":201,"message":"Account created","token":"ignored"}`)

	sess := session.NewMemoryStore()
	a, err := NewAuthClient(server.URL+"/api/", sess)
	require.NoError(t, err)

	resp, err := a.Register(context.Background(), Credentials{Email: "typed@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "Account created", resp.Message)
	assert.False(t, sess.IsAuthenticated())
}
