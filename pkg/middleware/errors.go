package middleware

import (
	"errors"
	"fmt"
	"strings"

	"rapport/pkg/apperr"
	"rapport/pkg/envelope"
	"rapport/pkg/logging"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the only place errors become HTTP answers. Internal errors
// are logged with their cause and reach the client as a generic message.
func ErrorHandler(log logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code, msg := Translate(err)
		if code == apperr.CodeInternal {
			log.Error(c.UserContext(), "request failed",
				"error", err,
				"method", c.Method(),
				"path", c.Path(),
				"trace_id", envelope.TraceID(c),
			)
		}
		return envelope.Fail(c, status, code, msg)
	}
}

// Translate maps err to an HTTP status, envelope code and client message.
func Translate(err error) (int, apperr.Code, string) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return fiber.StatusBadRequest, apperr.CodeValidation, FieldMessage(ve[0], ve[0].Param())
	}

	if e, ok := apperr.As(err); ok {
		if e.Code == apperr.CodeInternal {
			return internal()
		}
		return apperr.Status(e.Code), e.Code, e.Message
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch {
		case fe.Code == fiber.StatusNotFound:
			return fiber.StatusNotFound, apperr.CodeNotFound, apperr.ErrNotFound.Message
		case fe.Code >= 400 && fe.Code < 500:
			return fe.Code, apperr.CodeBadRequest, fe.Message
		}
	}
	return internal()
}

func internal() (int, apperr.Code, string) {
	return fiber.StatusInternalServerError, apperr.CodeInternal, apperr.ErrInternal.Message
}

// FieldMessage describes a failed field for clients. param replaces
// fe.Param(), so callers can pass a cross-field reference under its JSON name.
func FieldMessage(fe validator.FieldError, param string) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, param)
	default:
		return field + " is invalid"
	}
}
