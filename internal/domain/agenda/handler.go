package agenda

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
	role := auth.RequireRole("admin", "agent")

	read := api.Group("", role)
	read.GET("/agenda/slots/catalog", h.GetCatalog)
	read.GET("/agenda/slots", h.GetAvailability)
	read.GET("/agenda/calendar", h.GetCalendar)
	read.GET("/visits", h.ListVisits)
	read.GET("/visits/:id", h.GetVisit)

	write := api.Group("", role)
	write.POST("/visits", h.CreateVisit)
	write.PUT("/visits/:id/reschedule", h.RescheduleVisit)
	write.PUT("/visits/:id/status", h.UpdateStatus)
	write.DELETE("/visits/:id", h.DeleteVisit)
}

func (h *Handler) GetCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Catalog())
}

func (h *Handler) GetAvailability(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = h.svc.Now().Format(DateLayout)
	}
	a, err := h.svc.Availability(c.Request().Context(), date, c.QueryParam("agent"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) GetCalendar(c echo.Context) error {
	vs := ViewStateFromQuery(c.QueryParams(), h.svc.Now())
	grid, err := h.svc.Calendar(c.Request().Context(), vs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"state": vs,
		"query": vs.Query().Encode(),
		"grid":  grid,
	})
}

func (h *Handler) ListVisits(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		DateFrom: c.QueryParam("dateFrom"),
		DateTo:   c.QueryParam("dateTo"),
		AgentID:  c.QueryParam("agentId"),
	}
	items, total, err := h.svc.ListVisits(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.GetVisit(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) CreateVisit(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.rejectPast(req.Date); err != nil {
		return err
	}
	v, err := h.svc.CreateVisit(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) RescheduleVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.rejectPast(req.Date); err != nil {
		return err
	}
	v, err := h.svc.Reschedule(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteVisit(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// rejectPast refuses bookings on days that are already over. Malformed dates
// are left for the service to report.
func (h *Handler) rejectPast(date string) error {
	d, err := ParseDate(date)
	if err != nil {
		return nil
	}
	if h.svc.IsPast(d) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ErrPastDate.Error())
	}
	return nil
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
