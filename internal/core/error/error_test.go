package errx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestWrapRedis(t *testing.T) {
	assert.Nil(t, WrapRedis(nil))

	status, msg := StatusOf(WrapRedis(redis.Nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, RedisNotFoundMessage, msg)

	status, msg = StatusOf(WrapRedis(errors.New("connection refused")))
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, RedisErrorMessage, msg)
}

func TestWrapModel(t *testing.T) {
	status, msg := StatusOf(WrapModel(errors.New("boom")))
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, ModelErrorMessage, msg)

	status, _ = StatusOf(WrapModel(fmt.Errorf("generate: %w", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusGatewayTimeout, status)

	// already classified errors keep their status
	bad := BadRequest("query is required")
	assert.Same(t, bad, WrapModel(bad))
}

func TestStatusOfUnknownError(t *testing.T) {
	status, msg := StatusOf(errors.New("raw internal detail"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, SystemErrorMessage, msg)
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("load history: %w", WrapRedis(redis.Nil))
	assert.True(t, errors.Is(err, redis.Nil))

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}
