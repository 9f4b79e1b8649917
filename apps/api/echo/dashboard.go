package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/dashboard"
)

var timeNow = time.Now // mockable

type dashboardApi struct {
	svc *dashboard.Service
}

func registerDashboardAPI(e *echo.Echo, authed, admin echo.MiddlewareFunc, opts *Options) {
	api := dashboardApi{svc: opts.DashboardSvc}

	g := e.Group("/dashboard", authed, admin)
	g.GET("", api.summary)
	g.GET("/activity", api.activity)
}

func (api *dashboardApi) summary(ctx echo.Context) error {
	sum, err := api.svc.Summary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing dashboard summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *dashboardApi) activity(ctx echo.Context) error {
	var days int
	if err := echo.QueryParamsBinder(ctx).Int("days", &days).BindError(); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "days", Error: "debe ser un número entero"})
	}
	counts, err := api.svc.ActivityPerDay(ctx.Request().Context(), days)
	if err != nil {
		return errors.Wrap(err, "counting activity per day")
	}
	return ctx.JSON(http.StatusOK, counts)
}
