package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core/auth"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

type (
	authApi struct {
		svc     *auth.Service
		opts    *Options
		metrics *metrics
	}

	SuccessResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}

	LoginResponse struct {
		Success bool `json:"success"`
		auth.Session
	}

	SecurityQuestionsResponse struct {
		Questions []string `json:"questions"`
	}
)

func registerAuthAPI(e *echo.Echo, authed echo.MiddlewareFunc, opts *Options, m *metrics) {
	api := authApi{svc: opts.AuthSvc, opts: opts, metrics: m}

	g := e.Group("/auth")

	// un-authed endpoints
	g.POST("/login", api.login)
	g.POST("/logout", api.logout)
	g.GET("/session", api.session)
	g.GET("/security-questions", api.securityQuestions)
	g.POST("/security-questions/verify", api.verifySecurityAnswers)
	g.POST("/password-reset", api.resetPassword)

	// authed endpoints
	g.PUT("/security-questions", api.setSecurityQuestions, authed)
}

func (api *authApi) setSessionCookie(ctx echo.Context, token string, expires time.Time) {
	ctx.SetCookie(&http.Cookie{
		Name:     api.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   api.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (api *authApi) clearSessionCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     api.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   api.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (api *authApi) login(ctx echo.Context) error {
	var data auth.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}

	sess, err := api.svc.Login(ctx.Request().Context(), data)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			api.metrics.login("invalid")
		case errors.Is(err, auth.ErrTooManyAttempts):
			api.metrics.login("throttled")
		}
		return err
	}
	api.metrics.login("success")

	api.setSessionCookie(ctx, sess.Token, sess.ExpiresAt)
	return ctx.JSON(http.StatusOK, LoginResponse{Success: true, Session: sess})
}

func (api *authApi) logout(ctx echo.Context) error {
	api.clearSessionCookie(ctx)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (api *authApi) session(ctx echo.Context) error {
	id, ok := contextIdentity(ctx)
	if !ok {
		return errUnauthorized
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": id, "redirect": auth.Landing(id.Role)})
}

func (api *authApi) securityQuestions(ctx echo.Context) error {
	qs, err := api.svc.SecurityQuestions(ctx.Request().Context(), ctx.QueryParam("email"))
	if err != nil {
		return errors.Wrap(err, "listing security questions")
	}
	return ctx.JSON(http.StatusOK, SecurityQuestionsResponse{Questions: qs})
}

func (api *authApi) verifySecurityAnswers(ctx echo.Context) error {
	var data user.SecurityAnswers
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	grant, err := api.svc.VerifySecurityAnswers(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grant)
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Su contraseña fue restablecida. Ya puede iniciar sesión.",
	})
}

func (api *authApi) setSecurityQuestions(ctx echo.Context) error {
	var data user.SetSecurityQuestions
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	if err := api.svc.SetSecurityQuestions(ctx.Request().Context(), mustIdentity(ctx).UserID, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}
