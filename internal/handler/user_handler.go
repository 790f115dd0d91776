package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"idgate/internal/auth"
	"idgate/internal/service"
)

// UserHandler serves authenticated user endpoints.
type UserHandler struct {
	userService service.UserService
	sessions    auth.SessionStoreInterface
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userService service.UserService, sessions auth.SessionStoreInterface) *UserHandler {
	return &UserHandler{userService: userService, sessions: sessions}
}

// claimsFrom extracts the validated claims placed by the auth middleware.
func claimsFrom(c echo.Context) (*auth.Claims, error) {
	claims, ok := c.Get("user").(*auth.Claims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return claims, nil
}

// Me godoc
// @Summary Current user profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.PublicUser
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /me [get]
func (h *UserHandler) Me(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}
	id, err := claims.SubjectID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	user, err := h.userService.GetPublicUser(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// MySession godoc
// @Summary Last recorded session activity for the current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.SessionInfo
// @Failure 401 {object} errors.ErrorResponse
// @Router /me/session [get]
func (h *UserHandler) MySession(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	info, err := h.sessions.GetSession(c.Request().Context(), claims.Subject)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session lookup failed")
	}
	if info == nil {
		return c.JSON(http.StatusOK, map[string]any{})
	}
	return c.JSON(http.StatusOK, info)
}
