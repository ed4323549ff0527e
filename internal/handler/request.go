package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/metapantry/internal/access"
	"github.com/sakif/metapantry/internal/apperror"
)

// maxJSONBody caps JSON request bodies. Image uploads have their own limit.
const maxJSONBody = 1 << 20

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads one JSON value from the body into dst and runs struct
// validation. allowEmpty accepts a missing body and leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any, allowEmpty bool) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			if !allowEmpty {
				return apperror.ValidationFailed("body", "request body is required")
			}
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field,
				fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type))
		default:
			return apperror.InvalidInput("invalid JSON body", err)
		}
	}
	if err := v.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError reports the first failed rule.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.InvalidInput("invalid request", err)
	}
	fe := verrs[0]
	field := fe.Field()

	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "email":
		msg = field + " must be a valid email address"
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		msg = fmt.Sprintf("%s must be %s or more", field, fe.Param())
	default:
		msg = field + " is invalid"
	}
	return apperror.ValidationFailed(field, msg)
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}

// queryString returns nil when the parameter is absent or empty.
func queryString(r *http.Request, name string) *string {
	if raw := r.URL.Query().Get(name); raw != "" {
		return &raw
	}
	return nil
}

// callerFrom returns the identity RequireAuth stored in the context.
func callerFrom(r *http.Request) (access.Caller, error) {
	c, ok := access.CallerFromContext(r.Context())
	if !ok || c.UserID == "" {
		return access.Caller{}, apperror.Unauthorized("not authenticated")
	}
	return c, nil
}
