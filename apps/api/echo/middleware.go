package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/ja-viss/caipa-connect-sub000/core/auth"
	"github.com/ja-viss/caipa-connect-sub000/core/session"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

const contextIdentityKey = "identity"

// role aliases, to keep route tables short
const (
	adminRole          = user.RoleAdmin
	teacherRole        = user.RoleTeacher
	representativeRole = user.RoleRepresentative
)

// sessionMiddleware stores the identity of a valid session cookie in the context.
// Requests without one go on anonymously.
func sessionMiddleware(cookieName string, svc *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if cookie, err := ctx.Cookie(cookieName); err == nil && cookie.Value != "" {
				id, ok, err := svc.Session(ctx.Request().Context(), cookie.Value)
				if err != nil {
					return err
				}
				if ok {
					ctx.Set(contextIdentityKey, id)
				}
			}
			return next(ctx)
		}
	}
}

func contextIdentity(ctx echo.Context) (session.Identity, bool) {
	id, ok := ctx.Get(contextIdentityKey).(session.Identity)
	return id, ok
}

// mustIdentity returns the identity set by sessionMiddleware. Use behind requireSession only.
func mustIdentity(ctx echo.Context) session.Identity {
	id, _ := contextIdentity(ctx)
	return id
}

func requireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, ok := contextIdentity(ctx); !ok {
				return errUnauthorized
			}
			return next(ctx)
		}
	}
}

// requireRole lets through the sessions holding one of roles.
func requireRole(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, ok := contextIdentity(ctx)
			if !ok {
				return errUnauthorized
			}
			for _, role := range roles {
				if id.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// selfOrAdminMiddleware lets admins and the user named by the :id param through.
func selfOrAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, ok := contextIdentity(ctx)
			if !ok {
				return errUnauthorized
			}
			if id.IsAdmin() || id.UserID == ctx.Param("id") {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
