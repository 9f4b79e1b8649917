package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core/access"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
)

type messageApi struct {
	svc    *message.Service
	access *access.Service
}

func registerMessageAPI(e *echo.Echo, authed, admin echo.MiddlewareFunc, opts *Options) {
	api := messageApi{svc: opts.MessageSvc, access: opts.AccessSvc}

	g := e.Group("/messages", authed)
	g.GET("", api.query)
	g.POST("", api.send)
	g.DELETE("/:id", api.destroy, admin)
}

// query lists the messages of the session. Representatives mark them read by listing them.
func (api *messageApi) query(ctx echo.Context) error {
	msgs, err := api.access.Messages(ctx.Request().Context(), mustIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) send(ctx echo.Context) error {
	var data message.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	msg, err := api.svc.Send(ctx.Request().Context(), mustIdentity(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
