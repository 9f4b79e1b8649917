package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/auth"
)

// User-facing messages
const (
	msgInternal           = "Ocurrió un error inesperado. Por favor, intente de nuevo."
	msgUnauthorized       = "Debe iniciar sesión para continuar."
	msgForbidden          = "No tiene permiso para realizar esta acción."
	msgNotFound           = "El registro solicitado no existe."
	msgInvalidCredentials = "Correo o contraseña incorrectos."
	msgTooManyAttempts    = "Demasiados intentos fallidos. Intente de nuevo más tarde."
	msgInvalidData        = "Los datos enviados no son válidos."
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, msgUnauthorized)
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, msgForbidden)
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	errBadRequest    = echo.NewHTTPError(http.StatusBadRequest, msgInvalidData)
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func(error)) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body := errorBody(err, translator)

		if code == http.StatusInternalServerError {
			if id, ok := contextIdentity(ctx); ok {
				logger.Error(msgInternal, err, id)
			} else {
				logger.Error(msgInternal, err)
			}
			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown(err)
			}
			if ctx.Echo().Debug {
				body.Error = err.Error()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// errorBody maps err to a status code and a Spanish message. Unknown errors are internal.
func errorBody(err error, translator ut.Translator) (int, errorResponse) {
	var (
		httpErr  *echo.HTTPError
		vErrs    validator.ValidationErrors
		vErr     *core.ValidationError
		notFound *core.NotFoundError
	)

	switch {
	case errors.As(err, &httpErr):
		if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
			httpErr = herr
		}
		msg, ok := httpErr.Message.(string)
		if !ok || httpErr.Code >= http.StatusInternalServerError {
			msg = http.StatusText(httpErr.Code)
		}
		switch httpErr.Code {
		case http.StatusNotFound:
			msg = msgNotFound
		case http.StatusMethodNotAllowed:
			msg = "Método no permitido."
		case http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
			msg = msgInvalidData
		}
		return httpErr.Code, errorResponse{Error: msg}

	case errors.As(err, &vErrs):
		return http.StatusBadRequest, errorResponse{Errors: core.TranslateValidationErrors(vErrs, translator)}

	case errors.As(err, &vErr):
		if len(vErr.Fields) > 0 {
			fldErrs := make(map[string]string, len(vErr.Fields))
			for _, fErr := range vErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, errorResponse{Errors: fldErrs}
		}
		return http.StatusBadRequest, errorResponse{Error: msgInvalidData}

	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: msgInvalidCredentials}

	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests, errorResponse{Error: msgTooManyAttempts}

	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: msgForbidden}

	case errors.As(err, &notFound):
		return http.StatusNotFound, errorResponse{Error: msgNotFound}

	default: // any other error is a server error
		return http.StatusInternalServerError, errorResponse{Error: msgInternal}
	}
}
