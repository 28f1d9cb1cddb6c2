package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/jobboard-auth/internal/auth"
	"github.com/iliyamo/jobboard-auth/internal/middleware"
	"github.com/iliyamo/jobboard-auth/internal/model"
)

// requestTimeout bounds the store calls of a single request.
const requestTimeout = 5 * time.Second

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	svc     *auth.Service
	log     *zap.Logger
	cookies cookieJar
}

// NewAuthHandler sizes cookie lifetimes from the issuer's token lifetimes.
// It panics if svc or log is nil.
func NewAuthHandler(svc *auth.Service, secureCookies bool, log *zap.Logger) *AuthHandler {
	if svc == nil || log == nil {
		panic("nil dependency passed to NewAuthHandler")
	}
	return &AuthHandler{
		svc: svc,
		log: log,
		cookies: cookieJar{
			secure:     secureCookies,
			accessTTL:  svc.Issuer().AccessTTL(),
			refreshTTL: svc.Issuer().RefreshTTL(),
		},
	}
}

// ----- DTOs -----

type signInReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type signUpReq struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,max=72"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Role      string `json:"role" validate:"omitempty,oneof=USER EMPLOYER user employer"`
}

// userSummary is returned by sign-in, sign-up and refresh.
type userSummary struct {
	ID              uint64     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Role            model.Role `json:"role"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	IsPhoneVerified bool       `json:"isPhoneVerified"`
}

// sessionUser is the reduced projection returned by /session.
type sessionUser struct {
	ID        uint64     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      model.Role `json:"role"`
}

func summaryOf(u model.User) userSummary {
	return userSummary{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		IsPhoneVerified: u.IsPhoneVerified,
	}
}

// SignIn: POST /api/auth/signin.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.svc.SignIn(ctx, auth.Credentials{Email: req.Email, Password: req.Password}, clientOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.cookies.setTokens(c, res)
	return c.JSON(http.StatusOK, echo.Map{
		"user":        summaryOf(res.User),
		"accessToken": res.Access.Token,
	})
}

// SignUp: POST /api/auth/signup. Creates the account and signs it in.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.svc.Register(ctx, auth.Registration{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}, clientOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.cookies.setTokens(c, res)
	return c.JSON(http.StatusCreated, echo.Map{
		"user":        summaryOf(res.User),
		"accessToken": res.Access.Token,
	})
}

// Refresh: POST /api/auth/refresh. Rotates the refresh-token cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.svc.Refresh(ctx, readCookie(c, middleware.RefreshCookie), clientOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.cookies.setTokens(c, res)
	return c.JSON(http.StatusOK, echo.Map{
		"user":        summaryOf(res.User),
		"accessToken": res.Access.Token,
	})
}

// SignOut: DELETE /api/auth/refresh. Always 200; revocation is best effort.
func (h *AuthHandler) SignOut(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.svc.Logout(ctx, readCookie(c, middleware.RefreshCookie), clientOf(c)); err != nil {
		h.log.Warn("revoke refresh token on sign-out", zap.Error(err))
	}
	h.cookies.clearTokens(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "signed out"})
}

// SignOutEverywhere: DELETE /api/auth/sessions. Revokes every refresh token
// of the caller and clears this browser's cookies.
func (h *AuthHandler) SignOutEverywhere(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.svc.SignOutEverywhere(ctx, middleware.SessionFrom(c), clientOf(c)); err != nil {
		return writeError(c, h.log, err)
	}
	h.cookies.clearTokens(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "signed out everywhere"})
}

// Session: GET /api/auth/session.
func (h *AuthHandler) Session(c echo.Context) error {
	s := middleware.SessionFrom(c)
	if s == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u := s.User
	return c.JSON(http.StatusOK, echo.Map{"user": sessionUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}})
}
