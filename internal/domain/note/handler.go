package note

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/patient360/api/internal/platform/db"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(patients *echo.Group) {
	patients.POST("/:id/notes/ingest", h.Ingest)
	patients.POST("/:id/notes/reprocess", h.Reprocess)
	patients.GET("/:id/notes/:note_id", h.Get)
}

func (h *Handler) Ingest(c echo.Context) error {
	patientID := c.Param("id")
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Ingest(c.Request().Context(), patientID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrRedactionUnavailable):
			return echo.NewHTTPError(http.StatusServiceUnavailable,
				"Azure AI Language service unavailable. Please check configuration.")
		case errors.Is(err, db.ErrNotFound), IsInvalid(err):
			return httpError(err, patientID)
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to ingest note")
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Reprocess(c echo.Context) error {
	patientID := c.Param("id")
	res, err := h.svc.Reprocess(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err, patientID)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c echo.Context) error {
	patientID := c.Param("id")
	noteID, err := strconv.ParseInt(c.Param("note_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid note_id")
	}
	includeRaw := false
	if v := c.QueryParam("include_raw"); v != "" {
		if includeRaw, err = strconv.ParseBool(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "include_raw must be a boolean")
		}
	}
	d, err := h.svc.Get(c.Request().Context(), patientID, noteID, includeRaw)
	if errors.Is(err, db.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Note "+strconv.FormatInt(noteID, 10)+" not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load note")
	}
	return c.JSON(http.StatusOK, d)
}

func httpError(err error, patientID string) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient "+patientID+" not found")
	case IsInvalid(err):
		return echo.NewHTTPError(http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": "))
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process notes")
	}
}
