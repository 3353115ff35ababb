package nursing

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careconnect/careconnect/internal/domain/access"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Patients need the directory to pick a nurse; admins manage it.
	read := api.Group("/nurses", access.RequireCapability(access.BookAppointment, access.ViewNurses))
	read.GET("", h.ListNurses)
	read.GET("/:id", h.GetNurse)

	manage := api.Group("/nurses", access.RequireCapability(access.ManageNurses))
	manage.POST("", h.CreateNurse)
	manage.PUT("/:id/availability", h.SetAvailability)
}

func (h *Handler) ListNurses(c echo.Context) error {
	session, _ := access.FromContext(c.Request().Context())

	// Callers without directory access only ever see nurses they can book.
	availableOnly := c.QueryParam("available") == "true" || !session.Can(access.ViewNurses)

	items, err := h.svc.List(c.Request().Context(), availableOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load nurses")
	}
	if items == nil {
		items = []*Nurse{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) GetNurse(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	n, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nurseError(err)
	}
	session, _ := access.FromContext(c.Request().Context())
	if !n.Available && !session.Can(access.ViewNurses) {
		return echo.NewHTTPError(http.StatusNotFound, "nurse not found")
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) CreateNurse(c echo.Context) error {
	var req CreateNurseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidNurse):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrAlreadyExists):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create nurse").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, n)
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func (h *Handler) SetAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Available == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "available is required")
	}
	n, err := h.svc.SetAvailability(c.Request().Context(), id, *req.Available)
	if err != nil {
		return nurseError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func nurseError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "nurse not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "failed to load nurse").SetInternal(err)
}
