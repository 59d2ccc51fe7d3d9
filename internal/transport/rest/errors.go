package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
	"github.com/heartmarshall/servicelog-backend/pkg/ctxutil"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError is one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// writeError maps err to an HTTP status and error code. Unexpected errors
// are logged and answered with a generic 500 that never carries store text.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	status, resp := presentError(err)
	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		log.ErrorContext(ctx, "unexpected error",
			slog.String("error", err.Error()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("request_id", ctxutil.RequestIDFromCtx(ctx)),
		)
	}
	c.AbortWithStatusJSON(status, resp)
}

func presentError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Code: "VALIDATION", Message: err.Error(), Fields: fieldErrors(err)}
	case errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusBadRequest, ErrorResponse{Code: "INVALID_FORMAT", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrAlreadyExists):
		resp := ErrorResponse{Code: "ALREADY_EXISTS", Message: err.Error()}
		var ce *domain.ConflictError
		if errors.As(err, &ce) && ce.Field != "" {
			resp.Fields = []FieldError{{Field: ce.Field, Message: "already exists"}}
		}
		return http.StatusConflict, resp
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{Code: "UNAUTHENTICATED", Message: "authentication required"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Code: "FORBIDDEN", Message: "access denied"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "internal server error"}
	}
}

// fieldErrors flattens the field errors of err. Fields of a failing bulk
// item are prefixed with its position, e.g. entries[1].dna_count.
func fieldErrors(err error) []FieldError {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}

	prefix := ""
	var be *domain.BulkError
	if errors.As(err, &be) {
		prefix = fmt.Sprintf("entries[%d].", be.Index)
	}

	out := make([]FieldError, len(ve.Errors))
	for i, fe := range ve.Errors {
		out[i] = FieldError{Field: prefix + fe.Field, Message: fe.Message}
	}
	return out
}
