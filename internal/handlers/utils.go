package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/internal/authz"
	"github.com/jjudge-oj/gatekeeper/internal/logger"
	"github.com/jjudge-oj/gatekeeper/internal/services"
	"github.com/jjudge-oj/gatekeeper/internal/store"
	"github.com/jjudge-oj/gatekeeper/types"
	"go.uber.org/zap"
)

// Client-facing failure messages.
const (
	MsgBadCredentials = "Invalid username or password"
	MsgInvalidToken   = "Invalid token"
	MsgAccessDenied   = "Access denied"
	MsgNotFound       = "Resource not found"
	MsgConflict       = "Resource already exists"
	MsgUnexpected     = "An unexpected error occurred, please contact the administrator"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeFailure writes the uniform failure envelope.
func writeFailure(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{
		Timestamp:   time.Now().UTC(),
		StatusCode:  status,
		StatusText:  http.StatusText(status),
		Message:     message,
		RequestPath: r.URL.Path,
	})
}

// respondError maps err onto a status and client-safe message. Only
// unexpected errors are logged with detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFailure(w, r, http.StatusBadRequest, verr.Error())
	case errors.Is(err, services.ErrInvalidArgument):
		writeFailure(w, r, http.StatusBadRequest, strings.TrimPrefix(err.Error(), services.ErrInvalidArgument.Error()+": "))
	case errors.Is(err, services.ErrTokenInvalid):
		writeFailure(w, r, http.StatusUnauthorized, MsgInvalidToken)
	case errors.Is(err, services.ErrBadCredentials), errors.Is(err, services.ErrPrincipalNotFound):
		writeFailure(w, r, http.StatusUnauthorized, MsgBadCredentials)
	case errors.Is(err, services.ErrAuthorizationDenied):
		writeFailure(w, r, http.StatusForbidden, MsgAccessDenied)
	case errors.Is(err, store.ErrNotFound):
		writeFailure(w, r, http.StatusNotFound, MsgNotFound)
	case errors.Is(err, services.ErrEmailInUse):
		writeFailure(w, r, http.StatusConflict, "Email is already in use")
	case errors.Is(err, store.ErrDuplicate):
		writeFailure(w, r, http.StatusConflict, MsgConflict)
	default:
		logger.From(r.Context()).Error("unexpected error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeFailure(w, r, http.StatusInternalServerError, MsgUnexpected)
	}
}

// decodeAndValidate decodes a JSON body into dst and applies its
// validate tags. Failures are returned as *services.ValidationError.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "request body must be valid JSON"}}
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		return &services.ValidationError{Fields: fields}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// actorID returns the id of the authenticated caller, if any.
func actorID(r *http.Request) *uuid.UUID {
	p, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		return nil
	}
	id := p.ID
	return &id
}
