package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opshq/internal/handlers"
	"opshq/internal/repositories"
	"opshq/internal/routes"
	"opshq/internal/services"
)

const cookieName = "opshq_session"

type fakeEmailService struct {
	mu   sync.Mutex
	last string
	fail error
}

func (f *fakeEmailService) SendLoginCode(email, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.last = code
	return nil
}

func (f *fakeEmailService) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func setupRouter() (*gin.Engine, *fakeEmailService) {
	gin.SetMode(gin.TestMode)

	emails := &fakeEmailService{}
	authService := services.NewAuthService(
		repositories.NewMemoryAuthChallengeRepository(),
		repositories.NewMemoryUserRepository(),
		emails,
		nil,
		[]byte("test-secret"),
		0, 0,
	)

	r := gin.New()
	routes.SetupRoutes(
		r,
		authService,
		handlers.NewAuthHandler(authService, cookieName, false),
		handlers.NewChallengeHandler(authService),
		cookieName,
	)
	return r, emails
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, r *gin.Engine, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func TestRequestCodeRejectsBadEmail(t *testing.T) {
	r, _ := setupRouter()

	w := postJSON(t, r, "/auth/request-code", gin.H{"email": "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, r, "/auth/request-code", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginFlowEndToEnd(t *testing.T) {
	r, emails := setupRouter()

	// 1) запрашиваем код
	w := postJSON(t, r, "/auth/request-code", gin.H{"email": "user@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["challenge_id"])
	code := emails.lastCode()
	require.Len(t, code, 6)

	// 2) неверный код
	w = postJSON(t, r, "/auth/verify", gin.H{"email": "user@example.com", "code": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 3) верный код: cookie + токен в теле
	w = postJSON(t, r, "/auth/verify", gin.H{"email": "user@example.com", "code": code}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	userID, _ := body["user_id"].(string)
	token, _ := body["token"].(string)
	require.NotEmpty(t, userID)
	require.NotEmpty(t, token)

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Greater(t, cookie.MaxAge, 0)

	// 4) защищённый эндпоинт: cookie
	w = getJSON(t, r, "/auth/me", func(req *http.Request) { req.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, decodeBody(t, w)["user_id"])

	// 5) тот же токен через Bearer
	w = getJSON(t, r, "/auth/me", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// 6) без credentials — 401
	w = getJSON(t, r, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 7) аудит challenge'ей доступен под сессией
	w = getJSON(t, r, "/auth/challenges", func(req *http.Request) { req.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, decodeBody(t, w)["count"].(float64), float64(1))

	// 8) logout: cookie гасится, сессия отозвана
	w = postJSON(t, r, "/auth/logout", nil, func(req *http.Request) { req.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, w.Code)
	cleared := sessionCookie(w)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	w = getJSON(t, r, "/auth/me", func(req *http.Request) { req.AddCookie(cookie) })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyReplayReturnsNoPending(t *testing.T) {
	r, emails := setupRouter()

	w := postJSON(t, r, "/auth/request-code", gin.H{"email": "user@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	code := emails.lastCode()

	w = postJSON(t, r, "/auth/verify", gin.H{"email": "user@example.com", "code": code}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// повтор с тем же кодом
	w = postJSON(t, r, "/auth/verify", gin.H{"email": "user@example.com", "code": code}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "no pending code")
}

func TestDeliveryFailureMapsToBadGateway(t *testing.T) {
	r, emails := setupRouter()
	emails.fail = fmt.Errorf("smtp down")

	w := postJSON(t, r, "/auth/request-code", gin.H{"email": "user@example.com"}, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestChallengeListingRequiresSession(t *testing.T) {
	r, _ := setupRouter()
	w := getJSON(t, r, "/auth/challenges", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
