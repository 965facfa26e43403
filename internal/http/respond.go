package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

var validate = newValidator()

// newValidator reports fields by their JSON names so validation errors match
// the request body the client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message, field string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code, Field: field})
}

// decodeJSON reads the body into dst and runs the validate tags on it.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &service.Error{Kind: service.KindValidation, Field: "body", Message: "request body too large"}
		}
		return &service.Error{Kind: service.KindValidation, Field: "body", Message: "invalid JSON body"}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &service.Error{Kind: service.KindValidation, Field: fieldPath(fe), Message: validationMessage(fe)}
		}
		return &service.Error{Kind: service.KindValidation, Field: "body", Message: err.Error()}
	}
	return nil
}

// fieldPath drops the root struct name from the namespace, so
// createOrderRequest.recipient.email becomes recipient.email.
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// handleServiceError maps service error kinds onto HTTP statuses. Persistence
// and unclassified errors are logged and reported without detail.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		logger.WithContext(r.Context(), log).Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", "")
		return
	}

	switch se.Kind {
	case service.KindValidation:
		respondError(w, http.StatusBadRequest, "validation_error", se.Message, se.Field)
	case service.KindUnauthenticated:
		respondError(w, http.StatusUnauthorized, "unauthorized", se.Message, "")
	case service.KindForbidden:
		respondError(w, http.StatusForbidden, "forbidden", se.Message, "")
	case service.KindNotFound:
		respondError(w, http.StatusNotFound, "not_found", se.Message, "")
	case service.KindAlreadyExists:
		respondError(w, http.StatusBadRequest, "already_exists", se.Message, "")
	case service.KindIllegalTransition:
		respondError(w, http.StatusConflict, "illegal_transition", se.Message, "")
	default:
		logger.WithContext(r.Context(), log).Error("request failed", zap.String("kind", se.Kind.String()), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", "")
	}
}
