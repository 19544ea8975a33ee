package owner

import (
	"errors"
	"net/http"
	"strconv"

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
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleAgent))
	read.GET("/owners", h.ListOwners)
	read.GET("/owners/kpi", h.GetKPI)
	read.GET("/owners/exclusivity-expiring", h.GetExpiringExclusivities)
	read.GET("/owners/:id", h.GetOwner)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleAgent))
	write.POST("/owners", h.CreateOwner)
	write.PUT("/owners/:id", h.UpdateOwner)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/owners/:id", h.DeleteOwner)
}

var searchKeys = []string{"status", "q", "name", "exclusivity_to", "follow_up_to", "sort"}

func searchParams(c echo.Context) map[string]string {
	params := make(map[string]string)
	for _, k := range searchKeys {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	return params
}

func (h *Handler) CreateOwner(c echo.Context) error {
	var o Owner
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateOwner(c.Request().Context(), &o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOwner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.GetOwner(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListOwners(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchOwners(c.Request().Context(), searchParams(c), pg.Limit, pg.Offset)
	if err != nil {
		return searchError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateOwner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var o Owner
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o.ID = id
	if err := h.svc.UpdateOwner(c.Request().Context(), &o); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOwner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteOwner(c.Request().Context(), id); err != nil {
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

func (h *Handler) GetExpiringExclusivities(c echo.Context) error {
	within := 0
	if raw := c.QueryParam("within_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid within_days")
		}
		within = n
	}
	items, err := h.svc.ExpiringExclusivities(c.Request().Context(), within)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func searchError(err error) *echo.HTTPError {
	if errors.Is(err, ErrInvalidFilter) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
