package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/siahsang/beatpost/internal/config"
	"github.com/siahsang/beatpost/internal/fakeapi"
	"github.com/siahsang/beatpost/models"
)

const testPassword = "secret1"

var (
	validTitle   = "Howl for the best minds of my generation"
	validContent = strings.Repeat("I saw the best minds of my generation destroyed by madness. ", 4)
)

type testApp struct {
	app     *application
	backend *fakeapi.Server
	server  *httptest.Server
	client  *http.Client
}

// newTestApp wires a view server to a fresh fake backend. The auth manager is
// left Unresolved until start is called.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := fakeapi.New(fakeapi.Options{JWTSecret: "test-secret", BcryptCost: bcrypt.MinCost, Logger: logger})
	require.NoError(t, err)
	api := httptest.NewServer(backend.Handler())
	t.Cleanup(api.Close)

	cfg := config.Config{
		APIURL:       api.URL + "/api",
		SessionStore: "memory://",
		HTTPTimeout:  5 * time.Second,
		GateTimeout:  50 * time.Millisecond,
		LogLevel:     "debug",
		LogFormat:    config.LogFormatJSON,
	}
	app, err := newApplication(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(app.close)

	server := httptest.NewServer(app.routes())
	t.Cleanup(server.Close)

	return &testApp{
		app:     app,
		backend: backend,
		server:  server,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (ta *testApp) start(t *testing.T) {
	t.Helper()
	ta.app.auth.Start(context.Background())
}

// register creates an account on the backend directly.
func (ta *testApp) register(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := ta.backend.Store().Register(models.RegisterRequest{
		Username: username,
		Email:    username + "@beatpost.dev",
		Password: testPassword,
	})
	require.NoError(t, err)
	return user
}

// login registers username and signs the client in as them.
func (ta *testApp) login(t *testing.T, username string) *models.User {
	t.Helper()
	user := ta.register(t, username)
	ta.start(t)
	res, _ := ta.request(t, http.MethodPost, "/login", url.Values{
		"email":    {user.Email},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	return user
}

func (ta *testApp) request(t *testing.T, method, path string, form url.Values) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, ta.server.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return ta.send(t, req)
}

// rawStatus sends a request from a goroutine other than the test's and only
// reports the status code, 0 on transport errors.
func (ta *testApp) rawStatus(method, path string, form url.Values) int {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, ta.server.URL+path, body)
	if err != nil {
		return 0
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	res, err := ta.client.Do(req)
	if err != nil {
		return 0
	}
	res.Body.Close()
	return res.StatusCode
}

func (ta *testApp) multipart(t *testing.T, method, path string, fields url.Values, file string, data []byte) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, value := range values {
			require.NoError(t, writer.WriteField(key, value))
		}
	}
	if data != nil {
		part, err := writer.CreateFormFile(file, file+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(method, ta.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return ta.send(t, req)
}

func (ta *testApp) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	res, err := ta.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var data map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&data))
	return res, data
}

func (ta *testApp) publish(t *testing.T, title string) string {
	t.Helper()
	res, data := ta.request(t, http.MethodPost, "/write", url.Values{
		"title":    {title},
		"content":  {validContent},
		"hashtags": {"poetry, beat"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, data)
	return object(data, "view", "post")["id"].(string)
}

// object walks nested JSON objects by key.
func object(data map[string]any, keys ...string) map[string]any {
	current := data
	for _, key := range keys {
		next, _ := current[key].(map[string]any)
		current = next
	}
	return current
}

func notifications(data map[string]any) []string {
	var messages []string
	items, _ := data["notifications"].([]any)
	for _, item := range items {
		if n, ok := item.(map[string]any); ok {
			messages = append(messages, n["message"].(string))
		}
	}
	return messages
}
