package errx

import (
	"context"
	"errors"
	"net/http"
)

// WrapModel maps a reasoning-model failure to a 502, or 504 when the turn
// deadline expired while waiting for the model.
func WrapModel(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(err, http.StatusGatewayTimeout, TimeoutErrorMessage)
	}
	return New(err, http.StatusBadGateway, ModelErrorMessage)
}

// WrapUpstream maps failures of third-party HTTP APIs (search, transcription).
func WrapUpstream(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, UpstreamErrorMessage)
}
