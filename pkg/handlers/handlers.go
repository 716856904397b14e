// Package handlers adapts HTTP requests to the services. Handlers bind and
// validate input, call one service method and write the envelope; every error
// is returned as-is for the error translator.
package handlers

import (
	"errors"
	"reflect"
	"strings"

	"rapport/pkg/apperr"
	"rapport/pkg/middleware"
	"rapport/pkg/models"
	"rapport/pkg/ratelimit"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

// newValidator reports fields by their JSON name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return v
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// paramName resolves a cross-field tag parameter (nefield=OldPassword) to the
// JSON name of that field in dst. Other parameters come back unchanged.
func paramName(dst any, param string) string {
	t := reflect.TypeOf(dst)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return param
	}
	if f, ok := t.FieldByName(param); ok {
		if name := jsonName(f); name != "" {
			return name
		}
	}
	return param
}

var errMalformedBody = apperr.New(apperr.CodeBadRequest, "malformed JSON body")

func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return errMalformedBody
	}
	err := validate.Struct(dst)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return apperr.New(apperr.CodeValidation, middleware.FieldMessage(ve[0], paramName(dst, ve[0].Param())))
	}
	return err
}

func userID(c *fiber.Ctx) (int, error) {
	p, ok := middleware.Principal(c)
	if !ok {
		return 0, apperr.ErrUnauthenticated
	}
	return p.UserID, nil
}

func sessionMeta(c *fiber.Ctx) models.SessionMeta {
	return models.SessionMeta{
		UserAgent: c.Get(fiber.HeaderUserAgent),
		IP:        ratelimit.ClientKey(c.Get(fiber.HeaderXForwardedFor), c.Get("X-Real-IP"), c.IP()),
	}
}
