package router

import (
	"net/http"

	"github.com/iliyamo/jobboard-auth/internal/middleware"
	"github.com/iliyamo/jobboard-auth/internal/model"
)

// adminRoutes are restricted to ADMIN. The role is the one currently
// stored for the user, not the one the token was minted with.
func adminRoutes(d Deps) []Route {
	if d.Admin == nil {
		return nil
	}
	admin := middleware.Roles(model.RoleAdmin)
	return []Route{
		{Method: http.MethodPatch, Path: "/api/admin/users/:id", Handler: d.Admin.UpdateUser, Access: admin},
		{Method: http.MethodGet, Path: "/api/admin/audit", Handler: d.Admin.ListAudit, Access: admin},
	}
}
