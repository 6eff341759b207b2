package copilot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/patient360/api/internal/platform/db"
	"github.com/patient360/api/internal/platform/sse"
	"github.com/patient360/api/internal/platform/websocket"
)

type Handler struct {
	svc *Service
	ws  *websocket.Upgrader
}

// NewHandler creates the copilot handler. The WebSocket stream endpoint is
// only mounted when ws is non-nil.
func NewHandler(svc *Service, ws *websocket.Upgrader) *Handler {
	return &Handler{svc: svc, ws: ws}
}

// RegisterRoutes mounts the copilot endpoints on the /patients group.
func (h *Handler) RegisterRoutes(patients *echo.Group) {
	patients.POST("/:id/copilot/ask", h.Ask)
	patients.POST("/:id/copilot/stream", h.Stream)
	if h.ws != nil {
		patients.GET("/:id/copilot/ws", h.StreamWS)
	}
}

func (h *Handler) Ask(c echo.Context) error {
	patientID := c.Param("id")
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Ask(c.Request().Context(), patientID, req)
	if err != nil {
		return httpError(err, patientID)
	}
	return c.JSON(http.StatusOK, resp)
}

// Stream answers over server-sent events. Input and patient errors are
// ordinary HTTP errors; everything after the stream opens is an event.
func (h *Handler) Stream(c echo.Context) error {
	patientID := c.Param("id")
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	err := h.svc.Stream(c.Request().Context(), patientID, req, func() (Emitter, error) {
		return sse.NewWriter(c.Response())
	})
	if err != nil {
		return httpError(err, patientID)
	}
	return nil
}

// StreamWS runs the same event stream over a WebSocket. The client sends one
// request message; every later message from the client is ignored and a
// closed connection cancels the pipeline. Errors that would be HTTP errors on
// the SSE endpoint arrive as a single error event.
func (h *Handler) StreamWS(c echo.Context) error {
	patientID := c.Param("id")
	w, err := h.ws.Upgrade(c.Response(), c.Request())
	if err != nil {
		// the upgrader has already answered
		return nil
	}
	defer w.Close()

	var req AskRequest
	if err := w.ReadJSON(&req); err != nil {
		_ = w.Send(string(EventError), ErrorPayload{Error: "invalid request body"})
		return nil
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	w.WatchClose(cancel)

	err = h.svc.Stream(ctx, patientID, req, func() (Emitter, error) {
		return w, nil
	})
	if err != nil {
		_ = w.Send(string(EventError), ErrorPayload{Error: errorMessage(err, patientID)})
	}
	return nil
}

func errorMessage(err error, patientID string) string {
	var he *echo.HTTPError
	if errors.As(httpError(err, patientID), &he) {
		return fmt.Sprint(he.Message)
	}
	return err.Error()
}

func httpError(err error, patientID string) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient "+patientID+" not found")
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": "))
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process question")
	}
}
