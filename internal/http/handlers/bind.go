package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON decodes the request body into out and answers a 400 envelope
// on failure. Only presence checks run against the payload; anything
// beyond `binding:"required"` belongs to the caller.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		RespondBadRequest(ctx, bindErrorMessage(err))

		return false
	}

	return true
}

func bindErrorMessage(err error) string {
	var validatorErrs validator.ValidationErrors

	if errors.As(err, &validatorErrs) {
		missing := make([]string, 0, len(validatorErrs))

		for _, fieldErr := range validatorErrs {
			missing = append(missing, snakeCase(fieldErr.Field()))
		}

		return "Missing required field(s): " + strings.Join(missing, ", ")
	}

	var syntaxErr *json.SyntaxError

	if errors.As(err, &syntaxErr) {
		return "Request body is not valid JSON"
	}

	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		return "Invalid value for field " + typeErr.Field
	}

	return "Invalid request body"
}

// snakeCase maps a Go field name to its JSON shape (FullName -> full_name).
func snakeCase(field string) string {
	var b strings.Builder

	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}

	return b.String()
}
