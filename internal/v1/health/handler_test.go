package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(handler gin.HandlerFunc, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(path, handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveness(t *testing.T) {
	w := serve(Liveness, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadiness_StoreUp(t *testing.T) {
	up := pingFunc(func(ctx context.Context) error { return nil })
	w := serve(Readiness(up), "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadiness_StoreDown(t *testing.T) {
	down := pingFunc(func(ctx context.Context) error { return errors.New("no primary") })
	w := serve(Readiness(down), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no primary")
}
