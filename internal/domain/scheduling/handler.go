package scheduling

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careconnect/careconnect/internal/domain/access"
	"github.com/careconnect/careconnect/pkg/pagination"
)

const IdempotencyKeyHeader = "Idempotency-Key"

var decisionMessages = map[Decision]string{
	DecisionApprove:  "Appointment approved successfully!",
	DecisionReject:   "Appointment rejected successfully!",
	DecisionComplete: "Appointment marked as completed!",
}

const bookedMessage = "Appointment booked successfully! Waiting for approval."

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/booking/slots", h.ListSlots)

	readGroup := api.Group("/appointments", access.RequireCapability(
		access.ViewOwnAppointments, access.ViewAssignedAppointments, access.ViewAllAppointments))
	readGroup.GET("", h.ListAppointments)
	readGroup.GET("/:id", h.GetAppointment)

	bookGroup := api.Group("/appointments", access.RequireCapability(access.BookAppointment))
	bookGroup.POST("", h.BookAppointment)

	decideGroup := api.Group("/appointments", access.RequireCapability(access.DecideAppointments))
	decideGroup.POST("/:id/decision", h.DecideAppointment)

	completeGroup := api.Group("/appointments", access.RequireCapability(access.CompleteAppointments))
	completeGroup.POST("/:id/complete", h.CompleteAppointment)
}

// ActionResponse is returned by every appointment mutation.
type ActionResponse struct {
	Appointment *Appointment `json:"appointment"`
	Message     string       `json:"message"`
}

type decisionRequest struct {
	Decision  string `json:"decision"`
	VersionID *int   `json:"version_id,omitempty"`
}

func (h *Handler) ListSlots(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"slots": h.svc.Slots()})
}

func (h *Handler) BookAppointment(c echo.Context) error {
	session, ok := access.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appt, created, err := h.svc.Book(c.Request().Context(), session, req, c.Request().Header.Get(IdempotencyKeyHeader))
	if err != nil {
		var fieldErrs FieldErrors
		if errors.As(err, &fieldErrs) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{"errors": fieldErrs})
		}
		return mapError(err, "Failed to book appointment. Please try again.")
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return c.JSON(status, ActionResponse{Appointment: appt, Message: bookedMessage})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	session, ok := access.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)
	opts := ListOptions{
		Date:   c.QueryParam("date"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if raw := c.QueryParam("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			opts.Statuses = append(opts.Statuses, Status(strings.TrimSpace(st)))
		}
	}

	items, total, err := h.svc.List(c.Request().Context(), session, opts)
	if err != nil {
		var fieldErrs FieldErrors
		if errors.As(err, &fieldErrs) {
			return echo.NewHTTPError(http.StatusBadRequest, fieldErrs.Error())
		}
		return mapError(err, "failed to list appointments")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	session, ok := access.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), session, id)
	if err != nil {
		return mapError(err, "failed to load appointment")
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) DecideAppointment(c echo.Context) error {
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	decision, err := ParseDecision(req.Decision)
	if err != nil || decision == DecisionComplete {
		return echo.NewHTTPError(http.StatusBadRequest, "decision must be approve or reject")
	}
	return h.applyDecision(c, decision, req.VersionID)
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	var req decisionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return h.applyDecision(c, DecisionComplete, req.VersionID)
}

func (h *Handler) applyDecision(c echo.Context, decision Decision, expectedVersion *int) error {
	session, ok := access.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	appt, err := h.svc.Decide(c.Request().Context(), session, Command{
		AppointmentID:   id,
		Decision:        decision,
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		return mapError(err, "Failed to "+string(decision)+" appointment")
	}
	return c.JSON(http.StatusOK, ActionResponse{Appointment: appt, Message: decisionMessages[decision]})
}

func mapError(err error, fallback string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrSlotTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, fallback).SetInternal(err)
}
