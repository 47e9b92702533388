package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func testContext(mutate func(*http.Request)) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if mutate != nil {
		mutate(req)
	}
	c.Request = req
	return c
}

func TestCredentialFromRequest(t *testing.T) {
	const cookieName = "opshq_session"

	tests := []struct {
		name   string
		mutate func(*http.Request)
		want   string
	}{
		{
			name:   "nothing presented",
			mutate: nil,
			want:   "",
		},
		{
			name: "cookie",
			mutate: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: cookieName, Value: "from-cookie"})
			},
			want: "from-cookie",
		},
		{
			name: "bearer fallback",
			mutate: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer from-header")
			},
			want: "from-header",
		},
		{
			name: "cookie wins over header",
			mutate: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: cookieName, Value: "from-cookie"})
				req.Header.Set("Authorization", "Bearer from-header")
			},
			want: "from-cookie",
		},
		{
			name: "non-bearer scheme ignored",
			mutate: func(req *http.Request) {
				req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
			want: "",
		},
		{
			name: "case-insensitive bearer",
			mutate: func(req *http.Request) {
				req.Header.Set("Authorization", "bearer from-header")
			},
			want: "from-header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContext(tt.mutate)
			assert.Equal(t, tt.want, CredentialFromRequest(c, cookieName))
		})
	}
}
