package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"idgate/internal/errors"
	"idgate/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,excludesall=@"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest represents a user login request. Identifier is a username or
// an email address.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// OAuthCallbackRequest carries the normalized provider profile after the
// provider handshake completed.
type OAuthCallbackRequest struct {
	ID       string         `json:"id" validate:"required"`
	Email    string         `json:"email,omitempty" validate:"omitempty,email"`
	Username string         `json:"username,omitempty"`
	Name     string         `json:"name,omitempty"`
	Raw      map[string]any `json:"raw,omitempty"`
}

func clientFrom(c echo.Context) service.Client {
	return service.Client{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func mapServiceError(err error) *echo.HTTPError {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} service.TokenPair
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pair, err := h.authService.Register(c.Request().Context(), req.Username, req.Email, req.Password, clientFrom(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, pair)
}

// Login godoc
// @Summary Authenticate with username or email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} service.TokenPair
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pair, err := h.authService.Authenticate(c.Request().Context(), req.Identifier, req.Password, clientFrom(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh godoc
// @Summary Rotate a token pair using a refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} service.TokenPair
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pair, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken, clientFrom(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout godoc
// @Summary Revoke the presented tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LogoutRequest true "Tokens to revoke"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.authService.Logout(c.Request().Context(), req.AccessToken, req.RefreshToken); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// OAuthCallback godoc
// @Summary Resolve a provider identity to a user account
// @Description Accepts the normalized profile obtained after the provider
// @Description handshake and finds, links, or creates the matching user.
// @Tags auth
// @Accept json
// @Produce json
// @Param provider path string true "OAuth provider name"
// @Param request body OAuthCallbackRequest true "Provider profile"
// @Success 200 {object} service.TokenPair
// @Failure 400 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /auth/oauth/{provider}/callback [post]
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	provider := c.Param("provider")
	var req OAuthCallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile := service.OAuthProfile{
		ID:       req.ID,
		Email:    req.Email,
		Username: req.Username,
		Name:     req.Name,
		Raw:      req.Raw,
	}
	pair, err := h.authService.HandleOAuthCallback(c.Request().Context(), provider, profile, clientFrom(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, pair)
}
