package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hr-compliance-api/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func hrClaims(role string) Claims {
	return Claims{
		Email: "hr@example.com",
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestParseToken(t *testing.T) {
	good := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), hrClaims(RoleHR))
	claims, err := ParseToken(good, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, RoleHR, claims.Role)

	_, err = ParseToken(good, "other-secret")
	assert.Error(t, err)
	_, err = ParseToken(good, "")
	assert.Error(t, err)

	expired := hrClaims(RoleHR)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = ParseToken(signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired), testSecret)
	assert.Error(t, err)

	noSubject := hrClaims(RoleHR)
	noSubject.Subject = ""
	_, err = ParseToken(signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject), testSecret)
	assert.Error(t, err)

	_, err = ParseToken(signToken(t, jwt.SigningMethodHS512, []byte(testSecret), hrClaims(RoleHR)), testSecret)
	assert.Error(t, err, "only HS256 is accepted")
}

func TestAuthMiddlewareAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.SetSettings(&config.Settings{JWTSecret: testSecret})
	t.Cleanup(func() { config.SetSettings(nil) })

	router := gin.New()
	router.GET("/imports", AuthMiddleware(), RequireRole(RoleAdmin, RoleHR), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("email"))
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"hr role", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), hrClaims("HR")), http.StatusOK},
		{"admin role", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), hrClaims(RoleAdmin)), http.StatusOK},
		{"other role", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), hrClaims("employee")), http.StatusForbidden},
		{"no role", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), hrClaims("")), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/imports", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "hr@example.com", w.Body.String())
			}
		})
	}
}
