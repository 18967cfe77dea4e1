package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/authenticate/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authenticate/good-code":
			w.Write([]byte(`{"token":"tok-123"}`))
		case "/authenticate/empty-code":
			w.Write([]byte(`{}`))
		default:
			http.Error(w, "bad code", http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token tok-123" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"login":"alice","id":7}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExchange(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL+"/", srv.URL)
	ctx := context.Background()

	token, err := c.Exchange(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	_, err = c.Exchange(ctx, "bad-code")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")

	_, err = c.Exchange(ctx, "empty-code")
	assert.Error(t, err)

	_, err = c.Exchange(ctx, "")
	assert.Error(t, err)
}

func TestProfile(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL, srv.URL)

	user, err := c.Profile(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Login)

	_, err = c.Profile(context.Background(), "wrong")
	assert.Error(t, err)
}

func TestSignIn(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL, srv.URL)

	tok, err := c.SignIn(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok.Value)
	assert.Equal(t, "alice", tok.User.Login)

	_, err = c.SignIn(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestSignIn_Unreachable(t *testing.T) {
	srv := newServer(t)
	srv.Close()

	_, err := NewClient(srv.URL, srv.URL).SignIn(context.Background(), "good-code")
	assert.Error(t, err)
}

func TestAuthorizeURL(t *testing.T) {
	link, state := AuthorizeURL("", "client-1")

	_, err := uuid.Parse(state)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "client-1", u.Query().Get("client_id"))
	assert.Equal(t, state, u.Query().Get("state"))

	_, other := AuthorizeURL("", "client-1")
	assert.NotEqual(t, state, other)
}
