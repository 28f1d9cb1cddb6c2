package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jobboard-auth/internal/auth"
)

type requestValidator struct{ v *validator.Validate }

// NewValidator returns the echo.Validator used by c.Validate. Failures come
// back as *auth.ValidationError naming the JSON field.
func NewValidator() echo.Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

func (r *requestValidator) Validate(i any) error {
	err := r.v.Struct(i)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return &auth.ValidationError{Msg: "invalid request"}
	}
	fe := fields[0]
	switch fe.Tag() {
	case "required":
		return &auth.ValidationError{Msg: fmt.Sprintf("%s is required", fe.Field())}
	case "email":
		return &auth.ValidationError{Msg: fmt.Sprintf("%s must be a valid email address", fe.Field())}
	case "oneof":
		return &auth.ValidationError{Msg: fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())}
	case "max":
		return &auth.ValidationError{Msg: fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())}
	}
	return &auth.ValidationError{Msg: fmt.Sprintf("%s is invalid", fe.Field())}
}
