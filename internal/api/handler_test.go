package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"recipelab/internal/auth"
	"recipelab/internal/config"
	"recipelab/internal/recipe"
)

// mockScanner is a mock of the media scanner.
type mockScanner struct {
	draft        *recipe.Draft
	returnError  error
	calls        int
	receivedMIME string
}

// AnalyzeMedia mocks the AnalyzeMedia method.
func (m *mockScanner) AnalyzeMedia(ctx context.Context, data []byte, mimeType string) (*recipe.Draft, error) {
	m.calls++
	m.receivedMIME = mimeType
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.draft, nil
}

// mockRecipeStore fails every call with returnError.
type mockRecipeStore struct {
	returnError error
}

func (m *mockRecipeStore) ListRecipes(ctx context.Context, query string) ([]*recipe.Recipe, error) {
	return nil, m.returnError
}

func (m *mockRecipeStore) GetRecipe(ctx context.Context, id int64) (*recipe.Recipe, error) {
	return nil, m.returnError
}

func (m *mockRecipeStore) CreateRecipe(ctx context.Context, r *recipe.Recipe) (*recipe.Recipe, error) {
	return nil, m.returnError
}

func (m *mockRecipeStore) UpdateRecipe(ctx context.Context, id int64, p recipe.Patch) (*recipe.Recipe, error) {
	return nil, m.returnError
}

func (m *mockRecipeStore) DeleteRecipe(ctx context.Context, id int64) (bool, error) {
	return false, m.returnError
}

func (m *mockRecipeStore) GetScan(ctx context.Context, mediaHash string) (*recipe.Draft, error) {
	return nil, m.returnError
}

func (m *mockRecipeStore) SaveScan(ctx context.Context, mediaHash string, d *recipe.Draft) error {
	return m.returnError
}

type testEnv struct {
	router *gin.Engine
	auth   *auth.Service
}

func newTestEnv(t *testing.T, store RecipeStore, scanner Scanner) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	if store == nil {
		fs, err := recipe.NewFileStore(dir, zap.NewNop())
		require.NoError(t, err)
		store = fs
	}
	authService, err := auth.NewService(dir, config.AuthConfig{BcryptCost: bcrypt.MinCost}, zap.NewNop())
	require.NoError(t, err)

	h := NewHandler(scanner, store, authService, zap.NewNop(), Options{ScanTimeout: time.Second, MaxUploadBytes: 1 << 20})
	return &testEnv{router: NewRouter(h, []string{"http://localhost:5173"}), auth: authService}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	_, token, err := e.auth.Register(context.Background(), "chef", "secret1")
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rr := env.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok": true, "message": "API is healthy"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestListRecipes(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rr := env.do(t, http.MethodGet, "/api/recipes", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]recipe.Recipe](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, "Example Pancakes", list[0].Title)

	rr = env.do(t, http.MethodGet, "/api/recipes?q=PANCAKE", nil, "")
	assert.Len(t, decode[[]recipe.Recipe](t, rr), 1)

	rr = env.do(t, http.MethodGet, "/api/recipes?q=lasagna", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestRecipeLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	token := env.token(t)

	rr := env.do(t, http.MethodPost, "/api/recipes", map[string]any{
		"title":        "Brownies",
		"ingredients":  []string{"1 cup sugar", "8 oz chocolate"},
		"instructions": "Bake at 350°F for 25 minutes.",
	}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[recipe.Recipe](t, rr)
	assert.Equal(t, int64(2), created.ID)
	assert.Equal(t, "chef", created.Author)

	path := fmt.Sprintf("/api/recipes/%d", created.ID)

	rr = env.do(t, http.MethodGet, path+"?units=metric", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	converted := decode[recipe.Recipe](t, rr)
	assert.Equal(t, []string{"236.59 ml sugar", "226.8 g chocolate"}, converted.Ingredients)
	assert.Equal(t, "Bake at 176.67°C for 25 minutes.", converted.Instructions)

	rr = env.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1 cup sugar", decode[recipe.Recipe](t, rr).Ingredients[0])

	rr = env.do(t, http.MethodPut, path, map[string]any{"title": "Fudge Brownies"}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[recipe.Recipe](t, rr)
	assert.Equal(t, "Fudge Brownies", updated.Title)
	assert.Equal(t, created.Ingredients, updated.Ingredients)

	rr = env.do(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error": "Recipe not found"}`, rr.Body.String())

	rr = env.do(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPut, path, map[string]any{"title": "Gone"}, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecipeRequestErrors(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	token := env.token(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		token  string
		want   int
	}{
		{"invalid id", http.MethodGet, "/api/recipes/abc", nil, "", http.StatusBadRequest},
		{"zero id", http.MethodGet, "/api/recipes/0", nil, "", http.StatusBadRequest},
		{"unknown units", http.MethodGet, "/api/recipes/1?units=cubits", nil, "", http.StatusBadRequest},
		{"create without token", http.MethodPost, "/api/recipes", map[string]any{"title": "x", "instructions": "y"}, "", http.StatusUnauthorized},
		{"create with bad token", http.MethodPost, "/api/recipes", map[string]any{"title": "x", "instructions": "y"}, "nope", http.StatusUnauthorized},
		{"create without title", http.MethodPost, "/api/recipes", map[string]any{"instructions": "y"}, token, http.StatusBadRequest},
		{"create without instructions", http.MethodPost, "/api/recipes", map[string]any{"title": "x"}, token, http.StatusBadRequest},
		{"create with bad json", http.MethodPost, "/api/recipes", "{", token, http.StatusBadRequest},
		{"update clearing title", http.MethodPut, "/api/recipes/1", map[string]any{"title": ""}, token, http.StatusBadRequest},
		{"update invalid id", http.MethodPut, "/api/recipes/-4", map[string]any{"title": "x"}, token, http.StatusBadRequest},
		{"delete without token", http.MethodDelete, "/api/recipes/1", nil, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.Contains(t, decode[map[string]any](t, rr), "error")
		})
	}
}

func TestStoreFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusRequestTimeout},
		{"database down", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &mockRecipeStore{returnError: tt.err}, nil)

			rr := env.do(t, http.MethodGet, "/api/recipes", nil, "")
			assert.Equal(t, tt.want, rr.Code)

			rr = env.do(t, http.MethodGet, "/api/recipes/1", nil, "")
			assert.Equal(t, tt.want, rr.Code)
			assert.NotContains(t, rr.Body.String(), "connection refused")
		})
	}
}

func TestConvert(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rr := env.do(t, http.MethodPost, "/api/convert", map[string]any{
		"units":       "imperial",
		"text":        "Bake at 200°C.",
		"ingredients": []string{"500 g flour", "1 pinch salt"},
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"units": "imperial",
		"text": "Bake at 392°F.",
		"ingredients": ["17.64 oz flour", "1 pinch salt"]
	}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/convert", map[string]any{"units": "metric", "text": "2 tbsp oil"}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"units": "metric", "text": "29.57 ml oil"}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/convert", map[string]any{"units": "metric", "ingredients": []string{}}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"units": "metric", "ingredients": []}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/convert", map[string]any{"units": "furlongs", "text": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/convert", map[string]any{"units": "metric"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func encodeTestPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, contentType string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="upload"`, field))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAnalyzeMedia_CachesByHash(t *testing.T) {
	scanner := &mockScanner{draft: &recipe.Draft{Title: "Pancakes", Ingredients: []string{"1 cup flour"}, Instructions: "Fry."}}
	env := newTestEnv(t, nil, scanner)
	data := encodeTestPNG(t)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, uploadRequest(t, "media", "", data))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "miss", rr.Header().Get("X-Scan-Cache"))
	assert.Equal(t, "Pancakes", decode[recipe.Draft](t, rr).Title)
	assert.Equal(t, "image/png", scanner.receivedMIME)

	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, uploadRequest(t, "media", "image/png", data))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hit", rr.Header().Get("X-Scan-Cache"))
	assert.Equal(t, 1, scanner.calls)
}

func TestAnalyzeMedia_Video(t *testing.T) {
	scanner := &mockScanner{draft: &recipe.Draft{Title: "Stir Fry"}}
	env := newTestEnv(t, nil, scanner)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, uploadRequest(t, "media", "video/mp4", []byte("\x00\x00\x00\x18ftypmp42")))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "video/mp4", scanner.receivedMIME)
}

func TestAnalyzeMedia_Errors(t *testing.T) {
	pngData := encodeTestPNG(t)

	tests := []struct {
		name    string
		scanner Scanner
		req     func(t *testing.T) *http.Request
		want    int
	}{
		{
			name:    "not configured",
			scanner: nil,
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "media", "image/png", pngData) },
			want:    http.StatusServiceUnavailable,
		},
		{
			name:    "missing field",
			scanner: &mockScanner{},
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "file", "image/png", pngData) },
			want:    http.StatusBadRequest,
		},
		{
			name:    "unsupported type",
			scanner: &mockScanner{},
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "media", "", []byte("just some text")) },
			want:    http.StatusUnsupportedMediaType,
		},
		{
			name:    "corrupt image",
			scanner: &mockScanner{},
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "media", "image/png", []byte("not a png")) },
			want:    http.StatusBadRequest,
		},
		{
			name:    "too large",
			scanner: &mockScanner{},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "media", "video/mp4", bytes.Repeat([]byte{1}, 2<<20))
			},
			want: http.StatusRequestEntityTooLarge,
		},
		{
			name:    "no recipe",
			scanner: &mockScanner{returnError: fmt.Errorf("parse: %w", recipe.ErrNoRecipe)},
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "media", "image/png", pngData) },
			want:    http.StatusUnprocessableEntity,
		},
		{
			name:    "timeout",
			scanner: &mockScanner{returnError: context.DeadlineExceeded},
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "media", "image/png", pngData) },
			want:    http.StatusRequestTimeout,
		},
		{
			name:    "provider failure",
			scanner: &mockScanner{returnError: errors.New("quota exceeded")},
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "media", "image/png", pngData) },
			want:    http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, tt.scanner)
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, tt.req(t))
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.True(t, strings.Contains(rr.Body.String(), `"error"`))
		})
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rr := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{"username": "Alice", "password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	registered := decode[struct {
		Token string    `json:"token"`
		User  auth.User `json:"user"`
	}](t, rr)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "alice", registered.User.Username)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = env.do(t, http.MethodPost, "/api/auth/register", map[string]string{"username": "alice", "password": "secret2"}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/register", map[string]string{"username": "bo", "password": "secret2"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "wrong!!"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "ALICE", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	token := decode[map[string]any](t, rr)["token"].(string)

	rr = env.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", decode[map[string]map[string]any](t, rr)["user"]["username"])

	rr = env.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok": true}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBearerToken(t *testing.T) {
	tests := map[string]struct {
		header string
		want   string
		ok     bool
	}{
		"valid":        {"Bearer abc", "abc", true},
		"lower scheme": {"bearer abc", "abc", true},
		"basic":        {"Basic abc", "", false},
		"empty token":  {"Bearer  ", "", false},
		"missing":      {"", "", false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := bearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
