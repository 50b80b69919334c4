package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/assistant"
	errx "github.com/MedBuddy-core-poc-v1/server/internal/core/error"
	"github.com/MedBuddy-core-poc-v1/server/internal/search"
	"github.com/MedBuddy-core-poc-v1/server/internal/transcribe"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

const searchResults = 7

type handler struct {
	deps Deps
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	Reset     bool   `json:"reset"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func fail(c echo.Context, err error) error {
	status, msg := errx.StatusOf(err)
	return c.JSON(status, errorResponse{Error: msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// query answers one assistant turn.
// POST /api/query
func (h *handler) query(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	resp, err := h.deps.Assistant.Handle(c.Request().Context(), assistant.Request{
		Query:     req.Query,
		SessionID: req.SessionID,
		Mode:      req.Mode,
		Reset:     req.Reset,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DELETE /api/sessions/:id
func (h *handler) clearSession(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return badRequest(c, "session id is required")
	}
	if err := h.deps.Assistant.ClearSession(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"session_id": id, "cleared": true})
}

// search runs a regional web search.
// POST /api/search
func (h *handler) search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return badRequest(c, "No query provided")
	}
	if h.deps.Search == nil {
		return fail(c, errx.New(search.ErrNotConfigured, http.StatusServiceUnavailable, "web search is not configured"))
	}

	results, err := h.deps.Search.Search(c.Request().Context(), strings.TrimSpace(req.Query), searchResults)
	if errors.Is(err, search.ErrNotConfigured) {
		return fail(c, errx.New(err, http.StatusServiceUnavailable, "web search is not configured"))
	}
	if err != nil {
		return fail(c, errx.WrapUpstream(err))
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

// transcribe converts an uploaded recording to text.
// POST /api/transcribe
func (h *handler) transcribe(c echo.Context) error {
	fh, err := c.FormFile("audio")
	if err != nil {
		return badRequest(c, "No audio file provided")
	}
	if h.deps.Transcriber == nil {
		return fail(c, errx.New(errors.New("transcriber not configured"), http.StatusServiceUnavailable, "transcription is not configured"))
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "No audio file provided")
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		logx.Error().Err(err).Str("filename", fh.Filename).Msg("failed to read uploaded audio")
		return fail(c, err)
	}

	text, err := h.deps.Transcriber.Transcribe(c.Request().Context(), audio, fh.Header.Get(echo.HeaderContentType))
	if errors.Is(err, transcribe.ErrNoSpeech) {
		return badRequest(c, "Could not transcribe audio")
	}
	if err != nil {
		return fail(c, errx.WrapUpstream(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

// GET /api/health
func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
