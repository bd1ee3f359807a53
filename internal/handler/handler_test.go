package handler_test

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"FileVault/internal/cache"
	"FileVault/internal/dto"
	"FileVault/internal/handler"
	"FileVault/internal/repo"
	"FileVault/internal/service"
	"FileVault/internal/storage"
	"FileVault/internal/task"
	"FileVault/internal/testutil"
	"FileVault/router"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const secret = "handler-test-secret"

type testServer struct {
	engine *gin.Engine
	sync   *task.InlineDispatcher
	store  *storage.MemoryStore
}

func newTestServer(t *testing.T, maxUpload int64, quota int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	db := testutil.NewTestDB(t)
	metadata := repo.NewMetadataStore(db)
	local, err := cache.New(t.TempDir())
	require.NoError(t, err)
	dispatcher := task.NewInlineDispatcher(task.NewApplier(metadata, log, nil), log, 3, time.Millisecond)
	t.Cleanup(dispatcher.Wait)
	store := storage.NewMemoryStore()

	vault := service.NewVaultService(service.Deps{
		Metadata:      metadata,
		Store:         store,
		Cache:         local,
		Guard:         service.NewUploadGuard(metadata, []string{"*"}, quota),
		Sync:          dispatcher,
		Log:           log,
		PublicBaseURL: "http://vault.test",
	})
	users := service.NewUserService(service.UserDeps{
		Users:     repo.NewUserStore(db),
		JWTSecret: secret,
		TokenTTL:  time.Hour,
		Log:       log,
	})
	h := handler.New(vault, users, maxUpload, log)
	return &testServer{
		engine: router.InitRouter(h, router.Options{JWTSecret: secret}),
		sync:   dispatcher,
		store:  store,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/users/new", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	form := url.Values{"username": {username}, "password": {password}}
	req = httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tok dto.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.Equal(t, "bearer", tok.TokenType)
	return tok.AccessToken
}

func uploadRequest(t *testing.T, token, fileName string, content []byte, tags string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if tags != "" {
		require.NoError(t, mw.WriteField("tags", tags))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/file/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func authed(method, target, token string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestCameraScenario(t *testing.T) {
	s := newTestServer(t, 1<<20, 0)
	token := s.register(t, "alice", "secret1")

	content := make([]byte, 19467)
	_, err := rand.Read(content)
	require.NoError(t, err)

	w := s.do(uploadRequest(t, token, "camera.png", content, "camera,photo"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view dto.FileView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal(t, "camera.png", view.FileName)
	require.Equal(t, int64(19467), view.Size)
	require.Equal(t, []string{"camera", "photo"}, view.Tags)

	w = s.do(authed(http.MethodGet, "/file/original?filename=camera.png", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, content, w.Body.Bytes())
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), `filename="camera.png"`)
	s.sync.Wait()

	w = s.do(authed(http.MethodDelete, "/file/camera.png", token, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var msg dto.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	require.Equal(t, "File deleted successfully", msg.Message)
	require.Equal(t, "camera.png", msg.Record.FileName)

	w = s.do(authed(http.MethodGet, "/file/original?filename=camera.png", token, nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"File not found"}`, w.Body.String())
}

func TestMetadataListSearchAndTags(t *testing.T) {
	s := newTestServer(t, 1<<20, 0)
	token := s.register(t, "alice", "secret1")

	w := s.do(uploadRequest(t, token, "a.txt", []byte("aaa"), "red"))
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(uploadRequest(t, token, "b.txt", []byte("bbb"), "blue"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(authed(http.MethodGet, "/file/a.txt/metadata", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var view dto.FileView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal(t, "a.txt", view.FileName)

	w = s.do(authed(http.MethodGet, "/file/missing.txt/metadata", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "null", w.Body.String())

	w = s.do(authed(http.MethodGet, "/files", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var views []dto.FileView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 2)

	w = s.do(authed(http.MethodPatch, "/file/a.txt/tags", token, []byte(`{"tags":["blue","green"]}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var msg dto.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	require.Equal(t, []string{"blue", "green"}, msg.Record.Tags)

	w = s.do(authed(http.MethodGet, "/files/search?tag=blue", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 2)

	w = s.do(authed(http.MethodGet, "/files/search?tag=red", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())

	w = s.do(authed(http.MethodPatch, "/file/missing.txt/tags", token, []byte(`{"tags":["x"]}`)))
	require.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(authed(http.MethodPatch, "/file/a.txt/tags", token, []byte(`{"tags":"x"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, 16, 4)
	token := s.register(t, "alice", "secret1")

	w := s.do(uploadRequest(t, token, "", nil, "x"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(uploadRequest(t, token, "big.bin", make([]byte, 17), ""))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = s.do(uploadRequest(t, token, "a.bin", make([]byte, 4), ""))
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(uploadRequest(t, token, "b.bin", make([]byte, 1), ""))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"Upload limit exceeded"}`, w.Body.String())
}

func TestStorageFailureIsServerError(t *testing.T) {
	s := newTestServer(t, 1<<20, 0)
	token := s.register(t, "alice", "secret1")
	s.store.FailPut = errors.New("bucket offline")

	w := s.do(uploadRequest(t, token, "a.txt", []byte("x"), ""))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"storage error"}`, w.Body.String())
}

func TestAuthAndLoginErrors(t *testing.T) {
	s := newTestServer(t, 1<<20, 0)
	s.register(t, "alice", "secret1")

	w := s.do(httptest.NewRequest(http.MethodGet, "/files", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	form := url.Values{"username": {"alice"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = s.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"Incorrect username or password"}`, w.Body.String())

	body := []byte(`{"username":"alice","password":"secret1"}`)
	req = httptest.NewRequest(http.MethodPost, "/users/new", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
