package glpi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionToken = "sess-0123"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTestServer starts a fake GLPI serving routes. initSession and
// killSession get default handlers unless routes overrides them.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()

	defaults := map[string]http.HandlerFunc{
		"GET /initSession": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"session_token": testSessionToken})
		},
		"GET /killSession": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	}

	mux := http.NewServeMux()
	for pattern, handler := range defaults {
		if _, ok := routes[pattern]; !ok {
			mux.HandleFunc(pattern, handler)
		}
	}
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, routes map[string]http.HandlerFunc) *Client {
	t.Helper()

	server := newTestServer(t, routes)
	client, err := New(context.Background(), server.URL, "app-token", UserToken("user-token"),
		WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		creds   Credentials
		errMsg  string
	}{
		{
			name:    "missing URL",
			baseURL: "",
			creds:   UserToken("token"),
			errMsg:  "glpi URL is required",
		},
		{
			name:    "no credentials",
			baseURL: "http://localhost/apirest.php",
			creds:   Credentials{},
			errMsg:  "user token or username/password is required",
		},
		{
			name:    "both credentials",
			baseURL: "http://localhost/apirest.php",
			creds:   Credentials{userToken: "token", username: "glpi"},
			errMsg:  "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.baseURL, "app", tt.creds)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNew_UserTokenSession(t *testing.T) {
	var initAuth, initAppToken, sessionHeader, userAgent string

	server := newTestServer(t, map[string]http.HandlerFunc{
		"GET /initSession": func(w http.ResponseWriter, r *http.Request) {
			initAuth = r.Header.Get("Authorization")
			initAppToken = r.Header.Get("App-Token")
			writeJSON(w, http.StatusOK, map[string]string{"session_token": testSessionToken})
		},
		"GET /getGlpiConfig": func(w http.ResponseWriter, r *http.Request) {
			sessionHeader = r.Header.Get("Session-Token")
			userAgent = r.Header.Get("User-Agent")
			writeJSON(w, http.StatusOK, map[string]any{"cfg_glpi": map[string]any{"version": "10.0.16"}})
		},
	})

	client, err := New(context.Background(), server.URL+"/", "app-token", UserToken("user-token"),
		WithUserAgent("inventory-sync/1.0"))
	require.NoError(t, err)

	assert.Equal(t, "user_token user-token", initAuth)
	assert.Equal(t, "app-token", initAppToken)
	assert.Equal(t, testSessionToken, client.SessionToken())
	assert.Equal(t, server.URL, client.BaseURL())

	cfg, err := client.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cfg, "cfg_glpi")
	assert.Equal(t, testSessionToken, sessionHeader)
	assert.Equal(t, "inventory-sync/1.0", userAgent)
}

func TestNew_BasicAuth(t *testing.T) {
	var user, pass string
	var ok bool

	server := newTestServer(t, map[string]http.HandlerFunc{
		"GET /initSession": func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok = r.BasicAuth()
			writeJSON(w, http.StatusOK, map[string]string{"session_token": testSessionToken})
		},
	})

	_, err := New(context.Background(), server.URL, "", BasicAuth("glpi", "secret"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "glpi", user)
	assert.Equal(t, "secret", pass)
}

func TestNew_InitSessionRejected(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		"GET /initSession": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, []string{"ERROR_GLPI_LOGIN_USER_TOKEN", "parameter user_token seems invalid"})
		},
	})

	_, err := New(context.Background(), server.URL, "app", UserToken("bad"))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "ERROR_GLPI_LOGIN_USER_TOKEN", apiErr.Code)
	assert.True(t, apiErr.IsUnauthorized())
	assert.Contains(t, err.Error(), "(ERROR_GLPI_LOGIN_USER_TOKEN) parameter user_token seems invalid")
}

func TestNew_CommunicationError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(context.Background(), url, "app", UserToken("token"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommunication)

	var commErr *CommunicationError
	require.ErrorAs(t, err, &commErr)
	assert.Equal(t, "GET initSession", commErr.Op)
}

func TestClose(t *testing.T) {
	kills := 0
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /killSession": func(w http.ResponseWriter, r *http.Request) {
			kills++
			assert.Equal(t, testSessionToken, r.Header.Get("Session-Token"))
			w.WriteHeader(http.StatusOK)
		},
	})

	ctx := context.Background()
	require.NoError(t, client.Close(ctx))
	require.NoError(t, client.Close(ctx))
	assert.Equal(t, 1, kills)

	_, err := client.GetConfig(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestClose_SessionAlreadyExpired(t *testing.T) {
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /killSession": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, []string{"ERROR_SESSION_TOKEN_INVALID", "session_token seems invalid"})
		},
	})

	err := client.Close(context.Background())
	require.Error(t, err)
	assert.True(t, IsSessionError(err))
}

func TestWithSession(t *testing.T) {
	kills := 0
	server := newTestServer(t, map[string]http.HandlerFunc{
		"GET /killSession": func(w http.ResponseWriter, r *http.Request) {
			kills++
			w.WriteHeader(http.StatusOK)
		},
	})

	t.Run("closes after success", func(t *testing.T) {
		err := WithSession(context.Background(), server.URL, "app", UserToken("token"), func(c *Client) error {
			assert.Equal(t, testSessionToken, c.SessionToken())
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, kills)
	})

	t.Run("closes after failure", func(t *testing.T) {
		err := WithSession(context.Background(), server.URL, "app", UserToken("token"), func(c *Client) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 2, kills)
	})
}

func TestUnexpectedResponse(t *testing.T) {
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /getGlpiConfig": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		},
	})

	_, err := client.GetConfig(context.Background())
	require.Error(t, err)

	var unexpected *UnexpectedResponseError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, http.StatusTeapot, unexpected.StatusCode)
	assert.Equal(t, "I'm a teapot", unexpected.Reason)
	assert.Equal(t, "short and stout", unexpected.Body)
	assert.Equal(t, "unknown error: [418/I'm a teapot] short and stout", err.Error())
}

func TestErrorPayloadNotRecognized(t *testing.T) {
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /getGlpiConfig": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nope"})
		},
	})

	_, err := client.GetConfig(context.Background())
	require.Error(t, err)

	var unexpected *UnexpectedResponseError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, http.StatusBadRequest, unexpected.StatusCode)
	assert.True(t, strings.Contains(unexpected.Body, "nope"))
}

func TestRequestHeaderOption(t *testing.T) {
	var custom, appToken string

	server := newTestServer(t, map[string]http.HandlerFunc{
		"GET /getGlpiConfig": func(w http.ResponseWriter, r *http.Request) {
			custom = r.Header.Get("X-Trace")
			appToken = r.Header.Get("App-Token")
			writeJSON(w, http.StatusOK, map[string]any{})
		},
	})

	c, err := New(context.Background(), server.URL, "app-token", UserToken("token"),
		WithRequestHeader("X-Trace", "abc"),
		WithRequestHeader("App-Token", "override"),
		WithRequestHeader(" ", "ignored"),
	)
	require.NoError(t, err)

	_, err = c.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", custom)
	assert.Equal(t, "app-token", appToken)
}

func TestHTTPClientOption(t *testing.T) {
	server := newTestServer(t, nil)

	transport := &http.Transport{}
	hc := &http.Client{Timeout: 5 * time.Second, Transport: transport}

	c, err := New(context.Background(), server.URL, "", UserToken("token"),
		WithHTTPClient(hc),
		WithTimeout(7*time.Second),
		WithInsecureSkipVerify(),
	)
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, c.rest.GetClient().Timeout)
	assert.Equal(t, 5*time.Second, hc.Timeout, "caller client must not change")
	assert.Same(t, transport, hc.Transport)
	assert.Nil(t, transport.TLSClientConfig, "caller transport must not change")

	c, err = New(context.Background(), server.URL, "", UserToken("token"), WithHTTPClient(hc))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.rest.GetClient().Timeout)
}

func TestClientConcurrentUse(t *testing.T) {
	var listed atomic.Int32
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /listSearchOptions/Computer": func(w http.ResponseWriter, r *http.Request) {
			listed.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{
				"1": map[string]any{"name": "Name", "uid": "Computer.name"},
			})
		},
		"GET /Computer/{id}": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id")})
		},
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := client.FieldID(ctx, "Computer", "name", false)
			assert.NoError(t, err)
			assert.Equal(t, 1, id)

			item, err := client.GetItem(ctx, "Computer", i+1, nil)
			assert.NoError(t, err)
			assert.Equal(t, i+1, item.ID())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), listed.Load())

	require.NoError(t, client.Close(ctx))
	_, err := client.GetItem(ctx, "Computer", 1, nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
