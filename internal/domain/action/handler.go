package action

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
	patients.GET("/:id/actions", h.List)
	patients.POST("/:id/actions", h.Create)
	patients.POST("/:id/actions/bulk", h.CreateBulk)
	patients.PUT("/:id/actions/:action_id", h.Update)
	patients.DELETE("/:id/actions/:action_id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	actions, err := h.svc.List(c.Request().Context(), c.Param("id"), c.QueryParam("status"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list actions")
	}
	return c.JSON(http.StatusOK, actions)
}

func (h *Handler) Create(c echo.Context) error {
	patientID := c.Param("id")
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Create(c.Request().Context(), patientID, req)
	if err != nil {
		return patientError(err, patientID)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CreateBulk(c echo.Context) error {
	patientID := c.Param("id")
	var req BulkCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	actions, err := h.svc.CreateBulk(c.Request().Context(), patientID, req)
	if err != nil {
		return patientError(err, patientID)
	}
	return c.JSON(http.StatusOK, actions)
}

func (h *Handler) Update(c echo.Context) error {
	actionID, err := strconv.ParseInt(c.Param("action_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action_id")
	}
	var u UpdateRequest
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Update(c.Request().Context(), c.Param("id"), actionID, u)
	if err != nil {
		return actionError(err, actionID)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	actionID, err := strconv.ParseInt(c.Param("action_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action_id")
	}
	resp, err := h.svc.Delete(c.Request().Context(), c.Param("id"), actionID)
	if err != nil {
		return actionError(err, actionID)
	}
	return c.JSON(http.StatusOK, resp)
}

func patientError(err error, patientID string) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient "+patientID+" not found")
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, invalidMessage(err))
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save action")
	}
}

func actionError(err error, actionID int64) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Action "+strconv.FormatInt(actionID, 10)+" not found")
	case errors.Is(err, ErrNoFields):
		return echo.NewHTTPError(http.StatusBadRequest, "No fields to update")
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, invalidMessage(err))
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update action")
	}
}

func invalidMessage(err error) string {
	return strings.Replace(err.Error(), ErrInvalidRequest.Error()+": ", "", 1)
}
