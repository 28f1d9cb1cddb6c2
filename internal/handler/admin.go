package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/jobboard-auth/internal/auth"
	"github.com/iliyamo/jobboard-auth/internal/middleware"
	"github.com/iliyamo/jobboard-auth/internal/model"
)

// AuditReader lists persisted audit events. repository.AuditRepo satisfies it.
type AuditReader interface {
	ListRecent(ctx context.Context, userID *uint64, limit int) ([]model.AuditEvent, error)
}

// AdminHandler serves /api/admin. Every route is gated to ADMIN.
type AdminHandler struct {
	svc   *auth.Service
	audit AuditReader
	log   *zap.Logger
}

// NewAdminHandler panics if a dependency is nil.
func NewAdminHandler(svc *auth.Service, audit AuditReader, log *zap.Logger) *AdminHandler {
	if svc == nil || audit == nil || log == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{svc: svc, audit: audit, log: log}
}

type updateUserReq struct {
	Role     *string `json:"role" validate:"omitempty,oneof=USER EMPLOYER ADMIN"`
	IsActive *bool   `json:"isActive"`
}

type adminUserView struct {
	userSummary
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// UpdateUser: PATCH /api/admin/users/:id.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.log, err)
	}

	patch := model.AccountPatch{IsActive: req.IsActive}
	if req.Role != nil {
		role, err := model.ParseRole(*req.Role)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be one of USER EMPLOYER ADMIN"})
		}
		patch.Role = &role
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.svc.UpdateAccount(ctx, middleware.SessionFrom(c), id, patch, clientOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": adminUserView{
		userSummary: summaryOf(u),
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
	}})
}

// ListAudit: GET /api/admin/audit?userId=&limit=.
func (h *AdminHandler) ListAudit(c echo.Context) error {
	var userID *uint64
	if s := c.QueryParam("userId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid userId"})
		}
		userID = &id
	}
	limit := 100
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 500"})
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	events, err := h.audit.ListRecent(ctx, userID, limit)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}
