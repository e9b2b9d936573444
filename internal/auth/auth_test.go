package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGitHub struct {
	tokenCalls atomic.Int32
	userCalls  atomic.Int32

	tokenBody   string
	userStatus  int
	userBody    string
	gotBearer   string
	gotClientID string
}

func (f *fakeGitHub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		f.gotClientID = r.PostForm.Get("client_id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		f.userCalls.Add(1)
		f.gotBearer = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.userStatus)
		_, _ = w.Write([]byte(f.userBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestExchanger(srv *httptest.Server) *Exchanger {
	return NewExchanger(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     srv.URL + "/login/oauth/access_token",
		APIURL:       srv.URL,
		HTTPClient:   srv.Client(),
	})
}

func TestExchange_MissingCode(t *testing.T) {
	f := &fakeGitHub{}
	e := newTestExchanger(f.server(t))

	for _, code := range []string{"", "   "} {
		res := e.Exchange(context.Background(), code)
		assert.False(t, res.Success)
		assert.Equal(t, MsgCodeRequired, res.Message)
	}
	assert.Zero(t, f.tokenCalls.Load(), "no outbound call without a code")
}

func TestExchange_ProviderErrorEchoed(t *testing.T) {
	f := &fakeGitHub{
		tokenBody: `{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`,
	}
	e := newTestExchanger(f.server(t))

	res := e.Exchange(context.Background(), "stale")
	assert.False(t, res.Success)
	assert.Equal(t, "The code passed is incorrect or expired.", res.Message)
	assert.Zero(t, f.userCalls.Load())
}

func TestExchange_Success(t *testing.T) {
	f := &fakeGitHub{
		tokenBody:  `{"access_token":"gho_abc","token_type":"bearer","scope":"repo,user"}`,
		userStatus: http.StatusOK,
		userBody:   `{"id":583231,"login":"octocat","email":"octo@example.com","avatar_url":"https://avatars/octo","name":"The Octocat"}`,
	}
	e := newTestExchanger(f.server(t))

	res := e.Exchange(context.Background(), "good-code")
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.User)
	assert.Equal(t, int64(583231), res.User.ID)
	assert.Equal(t, "octocat", res.User.Username)
	assert.Equal(t, "The Octocat", res.User.Name)
	assert.True(t, strings.HasPrefix(res.Token, "cl_"))
	assert.Equal(t, "Bearer gho_abc", f.gotBearer)
	assert.Equal(t, "client-id", f.gotClientID)
	assert.Equal(t, int32(1), f.tokenCalls.Load())

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"message"`)
}

func TestExchange_UserFetchFails(t *testing.T) {
	f := &fakeGitHub{
		tokenBody:  `{"access_token":"gho_abc","token_type":"bearer"}`,
		userStatus: http.StatusUnauthorized,
		userBody:   `{"message":"Bad credentials"}`,
	}
	e := newTestExchanger(f.server(t))

	res := e.Exchange(context.Background(), "code")
	assert.False(t, res.Success)
	assert.Equal(t, MsgUserFetch, res.Message)
}

func TestExchange_NetworkFailure(t *testing.T) {
	f := &fakeGitHub{}
	srv := f.server(t)
	e := newTestExchanger(srv)
	srv.Close()

	res := e.Exchange(context.Background(), "code")
	assert.False(t, res.Success)
	assert.Equal(t, MsgGeneric, res.Message)
}

func TestExchange_MalformedUser(t *testing.T) {
	f := &fakeGitHub{
		tokenBody:  `{"access_token":"gho_abc","token_type":"bearer"}`,
		userStatus: http.StatusOK,
		userBody:   `not json`,
	}
	e := newTestExchanger(f.server(t))

	res := e.Exchange(context.Background(), "code")
	assert.False(t, res.Success)
	assert.Equal(t, MsgGeneric, res.Message)
}

func TestAuthCodeURL(t *testing.T) {
	e := NewExchanger(Config{ClientID: "abc", RedirectURL: "http://localhost:3000/auth/callback"})
	u := e.AuthCodeURL("xyz")
	assert.True(t, strings.HasPrefix(u, "https://github.com/login/oauth/authorize?"))
	assert.Contains(t, u, "client_id=abc")
	assert.Contains(t, u, "scope=repo+user")
	assert.Contains(t, u, "state=xyz")
	assert.True(t, e.Configured())
}

func TestNewSessionToken_Unique(t *testing.T) {
	a, b := NewSessionToken(), NewSessionToken()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("cl_")+26)
}
