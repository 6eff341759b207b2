package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/patient360/api/internal/platform/db"
	"github.com/patient360/api/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(patients *echo.Group) {
	patients.GET("/:id/snapshot", h.GetSnapshot)
	patients.GET("/:id/timeline", h.GetTimeline)
	patients.GET("/:id/medications", h.ListMedications)
	patients.GET("/:id/observations", h.ListObservations)
}

func (h *Handler) GetSnapshot(c echo.Context) error {
	id := c.Param("id")
	snap, err := h.svc.Snapshot(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err, id)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetTimeline(c echo.Context) error {
	id := c.Param("id")
	limit, err := pagination.LimitFromContext(c, pagination.DefaultBounds)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tl, err := h.svc.Timeline(c.Request().Context(), id, limit)
	if err != nil {
		return h.httpError(c, err, id)
	}
	return c.JSON(http.StatusOK, tl)
}

func (h *Handler) ListMedications(c echo.Context) error {
	id := c.Param("id")
	meds, err := h.svc.Medications(c.Request().Context(), id, c.QueryParam("status"))
	if err != nil {
		return h.httpError(c, err, id)
	}
	return c.JSON(http.StatusOK, meds)
}

func (h *Handler) ListObservations(c echo.Context) error {
	id := c.Param("id")
	limit, err := pagination.LimitFromContext(c, pagination.DefaultBounds)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	obs, err := h.svc.Observations(c.Request().Context(), id, c.QueryParam("code"), limit)
	if err != nil {
		return h.httpError(c, err, id)
	}
	return c.JSON(http.StatusOK, obs)
}

func (h *Handler) httpError(c echo.Context, err error, patientID string) error {
	if errors.Is(err, db.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Patient "+patientID+" not found")
	}
	h.logger.Error().Err(err).Str("patient_id", patientID).Str("path", c.Path()).Msg("patient request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "failed to load patient data")
}
