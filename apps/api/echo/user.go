package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/auth"
	"github.com/ja-viss/caipa-connect-sub000/core/registry"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

var errNoPermsToSetRole = "no tiene permiso para cambiar el rol"

type userApi struct {
	users    user.Repository
	auth     *auth.Service
	registry *registry.Service
}

func registerUserAPI(e *echo.Echo, authed, admin echo.MiddlewareFunc, opts *Options) {
	api := userApi{
		users:    opts.Store.Users,
		auth:     opts.AuthSvc,
		registry: opts.RegistrySvc,
	}

	ug := e.Group("/users", authed)
	ug.GET("", api.query, admin)
	ug.POST("", api.create, admin)

	// detail endpoints
	dg := ug.Group("/:id", selfOrAdminMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, admin)
}

// Handlers

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	users, err := api.users.QueryUsers(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	usr, err := api.auth.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.users.GetUserByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}

	// only admins change roles
	id := mustIdentity(ctx)
	if !id.IsAdmin() && data.Role != "" && user.Role(core.CleanString(string(data.Role), true)) != id.Role {
		return core.NewValidationError(core.ErrForbidden, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	usr, err := api.registry.UpdateUser(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	if ctx.Param("id") == mustIdentity(ctx).UserID {
		return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "no puede eliminar su propia cuenta"})
	}
	if err := api.registry.DeleteUser(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
