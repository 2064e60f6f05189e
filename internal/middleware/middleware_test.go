package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/middleware/requestid"
)

type staticValidator struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (v *staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	return v.claims, v.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/assets/:publicId", handlers...)
	return r
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assets/abc123", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearerToken(t *testing.T) {
	validator := &staticValidator{claims: &models.JWTClaims{Role: models.RoleAdmin}}
	r := newRouter(JWT(validator))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer ").Code)

	require.Equal(t, http.StatusOK, serve(r, "bearer token-1").Code)
	assert.Equal(t, "token-1", validator.token)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	validator := &staticValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}
	w := serve(newRouter(JWT(validator)), "Bearer stale")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestRequireRoles(t *testing.T) {
	staff := &staticValidator{claims: &models.JWTClaims{Role: models.RoleStaff}}
	admin := &staticValidator{claims: &models.JWTClaims{Role: models.RoleAdmin}}

	assert.Equal(t, http.StatusForbidden, serve(newRouter(JWT(staff), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)), "Bearer t").Code)
	assert.Equal(t, http.StatusOK, serve(newRouter(JWT(admin), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)), "Bearer t").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(newRouter(RequireRoles(models.RoleAdmin)), "").Code)
}

type recordingObserver struct {
	method, path string
	status       int
}

func (o *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.method, o.path, o.status = method, path, status
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	observer := &recordingObserver{}
	r := newRouter(Metrics(observer))
	serve(r, "")
	assert.Equal(t, http.MethodGet, observer.method)
	assert.Equal(t, "/assets/:publicId", observer.path)
	assert.Equal(t, http.StatusOK, observer.status)

	gin.SetMode(gin.TestMode)
	unmatched := gin.New()
	unmatched.Use(Metrics(observer))
	w := httptest.NewRecorder()
	unmatched.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, "unmatched", observer.path)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())
	r.GET("/stats", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ResponseMeta(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "req-1", meta["request_id"])
	assert.Contains(t, meta, "processing_time_ms")
}
