package task

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inmo/backoffice/internal/platform/auth"
	"github.com/inmo/backoffice/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole(auth.RoleAdmin, auth.RoleAgent)

	read := api.Group("", role)
	read.GET("/tasks", h.ListTasks)
	read.GET("/tasks/kpi", h.GetKPI)
	read.GET("/tasks/board", h.GetBoard)
	read.GET("/tasks/:id", h.GetTask)

	write := api.Group("", role)
	write.POST("/tasks", h.CreateTask)
	write.PUT("/tasks/:id", h.UpdateTask)
	write.DELETE("/tasks/:id", h.DeleteTask)
}

var searchKeys = []string{"status", "priority", "assignee_id", "owner_id", "property_id", "q", "due_from", "due_to", "sort"}

func searchParams(c echo.Context) map[string]string {
	params := make(map[string]string)
	for _, k := range searchKeys {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	return params
}

func (h *Handler) CreateTask(c echo.Context) error {
	var t Task
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTask(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTask(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTasks(c echo.Context) error {
	pg := pagination.FromContext(c)
	if ownerID := c.QueryParam("owner_id"); ownerID != "" {
		oid, err := uuid.Parse(ownerID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid owner_id")
		}
		items, total, err := h.svc.ListTasksByOwner(c.Request().Context(), oid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	items, total, err := h.svc.SearchTasks(c.Request().Context(), searchParams(c), pg.Limit, pg.Offset)
	if err != nil {
		return searchError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t Task
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.svc.UpdateTask(c.Request().Context(), &t); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteTask(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetKPI(c echo.Context) error {
	snap, err := h.svc.KPI(c.Request().Context(), searchParams(c))
	if err != nil {
		return searchError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetBoard(c echo.Context) error {
	cols, err := h.svc.Board(c.Request().Context(), searchParams(c))
	if err != nil {
		return searchError(err)
	}
	return c.JSON(http.StatusOK, cols)
}

func searchError(err error) *echo.HTTPError {
	if errors.Is(err, ErrInvalidFilter) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
