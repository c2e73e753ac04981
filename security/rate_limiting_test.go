package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderRequestEvent(userID string) *core.RequestEvent {
	e := &core.RequestEvent{}
	e.App = core.NewBaseApp(core.BaseAppConfig{})
	e.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	e.Response = httptest.NewRecorder()

	users := core.NewBaseCollection("users")
	auth := core.NewRecord(users)
	auth.Id = userID
	e.Auth = auth

	return e
}

func TestRateLimiter_UnderLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3, time.Minute)

	key := "ratelimit:orders:user:user-1"

	// First hit opens the window.
	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	require.NoError(t, limiter.Limit(newOrderRequestEvent("user-1")))

	// Later hits in the window only increment.
	mock.ExpectIncr(key).SetVal(2)
	require.NoError(t, limiter.Limit(newOrderRequestEvent("user-1")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_OverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3, time.Minute)

	mock.ExpectIncr("ratelimit:orders:user:user-1").SetVal(4)

	err := limiter.Limit(newOrderRequestEvent("user-1"))
	require.Error(t, err)

	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_FailsOpenOnRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3, time.Minute)

	mock.ExpectIncr("ratelimit:orders:user:user-1").SetErr(errors.New("connection refused"))

	assert.NoError(t, limiter.Limit(newOrderRequestEvent("user-1")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_NoRedisPassesThrough(t *testing.T) {
	limiter := NewRateLimiter(nil, 3, time.Minute)
	assert.NoError(t, limiter.Limit(newOrderRequestEvent("user-1")))
}
