package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careconnect/careconnect/internal/domain/access"
)

type Handler struct {
	sel *Selector
}

func NewHandler(sel *Selector) *Handler {
	return &Handler{sel: sel}
}

// RegisterRoutes mounts GET /dashboard. Any authenticated session may call
// it; an unrecognised role still gets 200 with the invalid-role view.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard", h.GetDashboard, access.RequireSession())
}

func (h *Handler) GetDashboard(c echo.Context) error {
	session, ok := access.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	view, err := h.sel.Select(session).Build(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load dashboard").SetInternal(err)
	}
	return c.JSON(http.StatusOK, view)
}
