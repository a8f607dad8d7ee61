package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestLivezAlwaysOK(t *testing.T) {
	s := NewServer(zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReflectsProbes(t *testing.T) {
	var brokerDown bool
	s := NewServer(zaptest.NewLogger(t),
		Probe{Name: "broker", Check: func(context.Context) error {
			if brokerDown {
				return errors.New("disconnected")
			}
			return nil
		}},
		Probe{Name: "kv", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	brokerDown = true
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disconnected")
}
