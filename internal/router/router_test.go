package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatwise/internal/config"
	"github.com/iliyamo/seatwise/internal/handler"
	"github.com/iliyamo/seatwise/internal/middleware"
	"github.com/iliyamo/seatwise/internal/model"
	"github.com/iliyamo/seatwise/internal/service"
)

type stubInventory struct{}

func (stubInventory) List(context.Context) (service.Inventory, error) {
	return service.Inventory{Layout: model.DefaultLayout()}, nil
}

type stubBooker struct{}

func (stubBooker) Book(context.Context, []string) (*model.Booking, error) {
	return nil, service.ErrSeatsUnavailable
}
func (stubBooker) Get(context.Context, string) (*model.Booking, error) { return nil, nil }
func (stubBooker) IssuePass(*model.Booking) (string, error)          { return "", nil }
func (stubBooker) VerifyPass(context.Context, string) (*model.Booking, error) {
	return nil, service.ErrPassesDisabled
}

func newTestRouter() http.Handler {
	return New(Deps{
		Seats:    &handler.SeatHandler{Inventory: stubInventory{}},
		Bookings: &handler.BookingHandler{Bookings: stubBooker{}},
		Health:   &handler.HealthHandler{},
		Cache:    middleware.NewResponseCache(config.CacheConfig{}, nil),
	})
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/book", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodPost)
	assert.JSONEq(t, `{"success":false,"error":"Method Not Allowed"}`, rec.Body.String())
}

func TestRoutes(t *testing.T) {
	h := newTestRouter()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/seats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderCorrelationID))

	req := httptest.NewRequest(http.MethodPost, "/book", strings.NewReader(`{"seatIds":["A1-A2"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
