package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biblioteca/internal/auth"
	"biblioteca/internal/catalog"
	"biblioteca/internal/covers"
	"biblioteca/internal/documents"
	"biblioteca/internal/keylock"
	"biblioteca/internal/loans"
	"biblioteca/internal/models"
	"biblioteca/internal/notify"
	"biblioteca/internal/storage/stubs"
	"biblioteca/internal/users"
)

const (
	adminPassword  = "Adm1n!pass"
	memberPassword = "Us3r!pass"
	testISBN       = "0-13-468599-7"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	hub    *notify.Hub
	db     *stubs.MockDB
}

func newEnv(t *testing.T, loginRate int) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	db := stubs.NewMockDB()
	locks := keylock.New()

	userService := users.NewService(db, locks, "0", logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_, err := userService.Bootstrap(ctx, "Root", adminPassword)
	require.NoError(t, err)

	store, err := covers.NewStore(t.TempDir())
	require.NoError(t, err)
	hub := notify.NewHub(logger)

	router := NewRouter(Services{
		Auth:      auth.NewService(db, db, locks, []byte("test-secret"), 15*time.Minute, logger),
		Users:     userService,
		Catalog:   catalog.NewService(db, db, store, nil, locks, logger),
		Loans:     loans.NewService(db, db, locks, hub, logger),
		Documents: documents.NewService(db, db, db, store, logger),
		Logins:    db,
		Events:    hub,
	}, loginRate, logger)
	return &testEnv{router: router, hub: hub, db: db}
}

type request struct {
	method, path, token string
	body                any
	raw                 []byte
	accept              string
}

func (e *testEnv) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch {
	case r.raw != nil:
		body = bytes.NewReader(r.raw)
	case r.body != nil:
		data, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, id, password string) string {
	t.Helper()
	w := e.do(t, request{method: http.MethodPost, path: "/login", body: gin.H{"identifier": id, "password": password}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	require.NotEmpty(t, token.Token)
	return token.Token
}

// setup logs the administrator in, creates member u1 and one book
func (e *testEnv) setup(t *testing.T) (adminToken, memberToken string) {
	t.Helper()
	adminToken = e.login(t, "0", adminPassword)

	w := e.do(t, request{method: http.MethodPost, path: "/usuario", token: adminToken, body: gin.H{
		"id": "u1", "name": "Ana", "surname1": "García", "password": memberPassword,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, request{method: http.MethodPost, path: "/libro", token: adminToken, body: gin.H{
		"isbn": testISBN, "title": "Effective Java", "author": "Joshua Bloch", "publisher": "Addison-Wesley", "year": 2018,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return adminToken, e.login(t, "u1", memberPassword)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, code, decode(t, w)["code"])
}

func TestScenario_PublicReadAdminWritesSingleLoan(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, memberToken := env.setup(t)

	// Public read without token
	w := env.do(t, request{method: http.MethodGet, path: "/libro/" + testISBN})
	require.Equal(t, http.StatusOK, w.Code)
	book := decode(t, w)
	assert.Equal(t, "Effective Java", book["title"])
	assert.Equal(t, true, book["available"])

	// Writes need an administrator
	draft := gin.H{"isbn": "978-0262033848", "title": "Introduction to Algorithms"}
	assertError(t, env.do(t, request{method: http.MethodPost, path: "/libro", body: draft}), http.StatusUnauthorized, "UNAUTHENTICATED")
	assertError(t, env.do(t, request{method: http.MethodPost, path: "/libro", token: memberToken, body: draft}), http.StatusForbidden, "FORBIDDEN")

	// One loan per ISBN
	loan := gin.H{"isbn": testISBN, "user_id": "u1"}
	w = env.do(t, request{method: http.MethodPost, path: "/prestamo", token: adminToken, body: loan})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assertError(t, env.do(t, request{method: http.MethodPost, path: "/prestamo", token: adminToken, body: loan}), http.StatusConflict, "ALREADY_LOANED")

	// Administrators see the borrower, others only the availability
	admin := decode(t, env.do(t, request{method: http.MethodGet, path: "/libro/" + testISBN, token: adminToken}))
	assert.Equal(t, false, admin["available"])
	assert.Equal(t, "u1", admin["borrower"])
	assert.NotEmpty(t, admin["loaned_at"])

	anonymous := decode(t, env.do(t, request{method: http.MethodGet, path: "/libro/" + testISBN}))
	assert.Equal(t, false, anonymous["available"])
	assert.NotContains(t, anonymous, "borrower")
}

func TestLogin(t *testing.T) {
	env := newEnv(t, 0)

	w := env.do(t, request{method: http.MethodPost, path: "/login", body: gin.H{"identifier": "0", "password": "wrong"}})
	assertError(t, w, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	w = env.do(t, request{method: http.MethodPost, path: "/login", body: gin.H{"identifier": "0"}})
	assertError(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = env.do(t, request{method: http.MethodGet, path: "/login?identificador=0&password=" + adminPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["token"])
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newEnv(t, 0)
	token := env.login(t, "0", adminPassword)

	require.Equal(t, http.StatusOK, env.do(t, request{method: http.MethodGet, path: "/usuario", token: token}).Code)
	require.Equal(t, http.StatusNoContent, env.do(t, request{method: http.MethodDelete, path: "/logout", token: token}).Code)
	assertError(t, env.do(t, request{method: http.MethodGet, path: "/usuario", token: token}), http.StatusUnauthorized, "UNAUTHENTICATED")
}

func TestLogin_RateLimited(t *testing.T) {
	env := newEnv(t, 2)
	body := gin.H{"identifier": "0", "password": "wrong"}

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, request{method: http.MethodPost, path: "/login", body: body}).Code)
	}
	w := env.do(t, request{method: http.MethodPost, path: "/login", body: body})
	assertError(t, w, http.StatusTooManyRequests, "RATE_LIMITED")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestChangePassword(t *testing.T) {
	env := newEnv(t, 0)
	_, memberToken := env.setup(t)

	w := env.do(t, request{method: http.MethodPut, path: "/cambiar_password", token: memberToken, body: gin.H{
		"old_password": "wrong", "new_password": "N3w!password",
	}})
	assertError(t, w, http.StatusBadRequest, "INVALID_CREDENTIALS")

	w = env.do(t, request{method: http.MethodPut, path: "/cambiar_password", token: memberToken, body: gin.H{
		"old_password": memberPassword, "new_password": "weak",
	}})
	assertError(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = env.do(t, request{method: http.MethodPut, path: "/cambiar_password", token: memberToken, body: gin.H{
		"old_password": memberPassword, "new_password": "N3w!password",
	}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	env.login(t, "u1", "N3w!password")
}

func TestUsers(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, memberToken := env.setup(t)

	self := decode(t, env.do(t, request{method: http.MethodGet, path: "/usuario", token: memberToken}))
	assert.Equal(t, "u1", self["id"])
	assert.NotContains(t, self, "password_hash")

	assertError(t, env.do(t, request{method: http.MethodGet, path: "/usuario/0", token: memberToken}), http.StatusForbidden, "FORBIDDEN")
	assertError(t, env.do(t, request{method: http.MethodGet, path: "/usuario/nobody", token: adminToken}), http.StatusNotFound, "USER_NOT_FOUND")

	w := env.do(t, request{method: http.MethodPut, path: "/usuario", token: memberToken, body: gin.H{"name": "Ana María"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Ana María", decode(t, w)["name"])

	w = env.do(t, request{method: http.MethodPost, path: "/usuario", token: adminToken, body: gin.H{"id": "u1", "name": "Dup", "password": memberPassword}})
	assertError(t, w, http.StatusConflict, "DUPLICATE_USER")

	w = env.do(t, request{method: http.MethodGet, path: "/usuarios", token: adminToken, accept: "application/xml"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<users>")

	assertError(t, env.do(t, request{method: http.MethodDelete, path: "/usuario/0", token: adminToken}), http.StatusForbidden, "FORBIDDEN")
	require.Equal(t, http.StatusNoContent, env.do(t, request{method: http.MethodDelete, path: "/usuario/u1", token: adminToken}).Code)
	assertError(t, env.do(t, request{method: http.MethodGet, path: "/usuario/u1", token: adminToken}), http.StatusNotFound, "USER_NOT_FOUND")
}

func TestBooks_CRUDAndNegotiation(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, _ := env.setup(t)

	w := env.do(t, request{method: http.MethodGet, path: "/libro", accept: "application/xml"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<books><book><isbn>"+testISBN+"</isbn>")

	w = env.do(t, request{method: http.MethodGet, path: "/libro/" + testISBN, accept: "application/x-yaml"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "title: Effective Java")

	assertError(t, env.do(t, request{method: http.MethodPost, path: "/libro", token: adminToken, body: gin.H{"isbn": testISBN, "title": "Again"}}),
		http.StatusConflict, "DUPLICATE_ISBN")
	assertError(t, env.do(t, request{method: http.MethodPost, path: "/libro", token: adminToken, body: gin.H{"isbn": "978-0262033848"}}),
		http.StatusFailedDependency, "EXTERNAL_LOOKUP_UNAVAILABLE")

	w = env.do(t, request{method: http.MethodPut, path: "/libro/" + testISBN, token: adminToken, body: gin.H{"title": "Effective Java 3rd", "year": 2018}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Effective Java 3rd", decode(t, w)["title"])

	require.Equal(t, http.StatusNoContent, env.do(t, request{method: http.MethodDelete, path: "/libro/" + testISBN, token: adminToken}).Code)
	assertError(t, env.do(t, request{method: http.MethodGet, path: "/libro/" + testISBN}), http.StatusNotFound, "BOOK_NOT_FOUND")

	w = env.do(t, request{method: http.MethodGet, path: "/libro"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestBooks_OnLoanCannotChange(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, _ := env.setup(t)

	w := env.do(t, request{method: http.MethodPost, path: "/prestamo", token: adminToken, body: gin.H{"isbn": testISBN, "user_id": "u1"}})
	require.Equal(t, http.StatusCreated, w.Code)

	assertError(t, env.do(t, request{method: http.MethodDelete, path: "/libro/" + testISBN, token: adminToken}), http.StatusConflict, "BOOK_ON_LOAN")
	assertError(t, env.do(t, request{method: http.MethodDelete, path: "/usuario/u1", token: adminToken}), http.StatusConflict, "USER_HAS_LOANS")
}

func TestExportImport(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, _ := env.setup(t)

	w := env.do(t, request{method: http.MethodGet, path: "/exportar?formato=csv"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	csv := w.Body.Bytes()

	require.Equal(t, http.StatusNoContent, env.do(t, request{method: http.MethodDelete, path: "/libro/" + testISBN, token: adminToken}).Code)

	w = env.do(t, request{method: http.MethodPost, path: "/libro/importar?formato=csv", token: adminToken, raw: csv})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["imported"])
	require.Equal(t, http.StatusOK, env.do(t, request{method: http.MethodGet, path: "/libro/" + testISBN}).Code)

	w = env.do(t, request{method: http.MethodPost, path: "/libro/importar?formato=json", token: adminToken, raw: []byte(`[{"isbn":`)})
	assertError(t, w, http.StatusBadRequest, "FORMAT_ERROR")

	w = env.do(t, request{method: http.MethodPost, path: "/libro/importar?formato=yaml", token: adminToken, raw: csv})
	assertError(t, w, http.StatusBadRequest, "FORMAT_ERROR")

	w = env.do(t, request{method: http.MethodGet, path: "/exportar"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestCovers(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, _ := env.setup(t)

	img := image.NewGray(image.Rect(0, 0, 3, 4))
	var jpg, pngData bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))
	require.NoError(t, png.Encode(&pngData, img))

	assertError(t, env.do(t, request{method: http.MethodGet, path: "/caratula/" + testISBN}), http.StatusNotFound, "NOT_FOUND")
	assertError(t, env.do(t, request{method: http.MethodPut, path: "/caratula/" + testISBN, token: adminToken, raw: pngData.Bytes()}),
		http.StatusBadRequest, "FORMAT_ERROR")
	require.Equal(t, http.StatusNoContent, env.do(t, request{method: http.MethodPut, path: "/caratula/" + testISBN, token: adminToken, raw: jpg.Bytes()}).Code)

	w := env.do(t, request{method: http.MethodGet, path: "/caratula/" + testISBN})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, jpg.Bytes(), w.Body.Bytes())
}

func TestCovers_SizeLimit(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, _ := env.setup(t)

	oversized := bytes.Repeat([]byte{0xff}, covers.MaxSize+1)
	assertError(t, env.do(t, request{method: http.MethodPut, path: "/caratula/" + testISBN, token: adminToken, raw: oversized}),
		http.StatusBadRequest, "INVALID_INPUT")
}

// uploadContext builds a gin context around a request carrying body
func uploadContext(body io.Reader, contentType string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/libro/importar", body)
	if contentType != "" {
		c.Request.Header.Set("Content-Type", contentType)
	}
	return c
}

func multipartBody(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "books.csv")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestReadUpload_Limit(t *testing.T) {
	const limit = 16

	t.Run("raw at limit", func(t *testing.T) {
		data, name, err := readUpload(uploadContext(bytes.NewReader(bytes.Repeat([]byte("a"), limit)), ""), limit)
		require.NoError(t, err)
		assert.Len(t, data, limit)
		assert.Empty(t, name)
	})

	t.Run("raw over limit", func(t *testing.T) {
		_, _, err := readUpload(uploadContext(bytes.NewReader(bytes.Repeat([]byte("a"), limit+1)), ""), limit)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		assert.Contains(t, err.Error(), "upload larger than 16 bytes")
	})

	t.Run("multipart at limit", func(t *testing.T) {
		body, contentType := multipartBody(t, bytes.Repeat([]byte("a"), limit))
		data, name, err := readUpload(uploadContext(body, contentType), limit)
		require.NoError(t, err)
		assert.Len(t, data, limit)
		assert.Equal(t, "books.csv", name)
	})

	t.Run("multipart over limit", func(t *testing.T) {
		body, contentType := multipartBody(t, bytes.Repeat([]byte("a"), limit+1))
		_, _, err := readUpload(uploadContext(body, contentType), limit)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		assert.Contains(t, err.Error(), "upload larger than 16 bytes")
	})

	t.Run("multipart body over the reader bound", func(t *testing.T) {
		body, contentType := multipartBody(t, bytes.Repeat([]byte("a"), limit+multipartOverhead))
		_, _, err := readUpload(uploadContext(body, contentType), limit)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("multipart without file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("other", "x"))
		require.NoError(t, mw.Close())
		_, _, err := readUpload(uploadContext(&buf, mw.FormDataContentType()), limit)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing file field")
	})
}

func TestLoans_Return(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, memberToken := env.setup(t)

	w := env.do(t, request{method: http.MethodPost, path: "/usuario", token: adminToken, body: gin.H{"id": "u2", "name": "Luis", "password": memberPassword}})
	require.Equal(t, http.StatusCreated, w.Code)
	otherToken := env.login(t, "u2", memberPassword)

	w = env.do(t, request{method: http.MethodPost, path: "/prestamo", token: adminToken, body: gin.H{"isbn": testISBN, "user_id": "u1"}})
	require.Equal(t, http.StatusCreated, w.Code)

	var mine []map[string]any
	w = env.do(t, request{method: http.MethodGet, path: "/mis_prestamos", token: memberToken})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	assertError(t, env.do(t, request{method: http.MethodGet, path: "/prestamo", token: memberToken}), http.StatusForbidden, "FORBIDDEN")
	assertError(t, env.do(t, request{method: http.MethodDelete, path: "/prestamo/" + testISBN, token: otherToken}), http.StatusForbidden, "FORBIDDEN")
	require.Equal(t, http.StatusNoContent, env.do(t, request{method: http.MethodDelete, path: "/prestamo/" + testISBN, token: memberToken}).Code)
	assertError(t, env.do(t, request{method: http.MethodDelete, path: "/prestamo/" + testISBN, token: memberToken}), http.StatusNotFound, "NO_ACTIVE_LOAN")
}

func TestDocuments(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, memberToken := env.setup(t)

	for _, r := range []request{
		{method: http.MethodGet, path: "/carne", token: memberToken},
		{method: http.MethodGet, path: "/carne/u1", token: adminToken},
		{method: http.MethodGet, path: "/ficha/" + testISBN},
		{method: http.MethodGet, path: "/informe_prestamos", token: adminToken},
	} {
		w := env.do(t, r)
		require.Equal(t, http.StatusOK, w.Code, r.path)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")), r.path)
	}

	assertError(t, env.do(t, request{method: http.MethodGet, path: "/carne/0", token: memberToken}), http.StatusForbidden, "FORBIDDEN")
	assertError(t, env.do(t, request{method: http.MethodGet, path: "/ficha/missing"}), http.StatusNotFound, "BOOK_NOT_FOUND")
}

func TestCitation(t *testing.T) {
	env := newEnv(t, 0)
	env.setup(t)

	w := env.do(t, request{method: http.MethodGet, path: "/referencia/" + testISBN + "?estilo=apa"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Joshua Bloch (2018). *Effective Java*. Addison-Wesley.", decode(t, w)["citation"])

	var all []map[string]any
	w = env.do(t, request{method: http.MethodGet, path: "/referencia/" + testISBN})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, len(documents.Styles))

	assertError(t, env.do(t, request{method: http.MethodGet, path: "/referencia/" + testISBN + "?estilo=harvard"}), http.StatusBadRequest, "UNSUPPORTED_STYLE")
}

func TestLoginLog(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, memberToken := env.setup(t)

	assertError(t, env.do(t, request{method: http.MethodGet, path: "/log", token: memberToken}), http.StatusForbidden, "FORBIDDEN")

	var records []map[string]any
	w := env.do(t, request{method: http.MethodGet, path: "/log?limit=1", token: adminToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "u1", records[0]["user_id"])

	assertError(t, env.do(t, request{method: http.MethodGet, path: "/log?limit=x", token: adminToken}), http.StatusBadRequest, "INVALID_INPUT")
}

func TestEvents_StreamLoans(t *testing.T) {
	env := newEnv(t, 0)
	adminToken, memberToken := env.setup(t)

	server := httptest.NewServer(env.router)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/eventos?token="

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+memberToken, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+adminToken, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	w := env.do(t, request{method: http.MethodPost, path: "/prestamo", token: adminToken, body: gin.H{"isbn": testISBN, "user_id": "u1"}})
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event notify.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, notify.EventLoanCreated, event.Type)
	assert.Equal(t, testISBN, event.ISBN)
	assert.Equal(t, "Effective Java", event.Title)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	env := newEnv(t, 0)

	w := env.do(t, request{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, request{method: http.MethodGet, path: "/nada"}).Code)
}
