// Package validation holds request DTOs and their validator/v10 rules.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"snapshare/internal/models"

	"github.com/go-playground/validator/v10"
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._]{1,28}[A-Za-z0-9])?$`)

// RegisterRequest is the signup body.
type RegisterRequest struct {
	Username string `json:"username" form:"username" validate:"required,username"`
	Email    string `json:"email" form:"email" validate:"required,email,max=254"`
	Password string `json:"password" form:"password" validate:"required,min=6,max=128"`
}

// LoginRequest is the login body.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// ProfileEditRequest holds the text fields of a profile edit. Nil means unchanged.
type ProfileEditRequest struct {
	Bio    *string `validate:"omitempty,max=150"`
	Gender *string `validate:"omitempty,oneof=male female"`
}

// CommentRequest is the add-comment body.
type CommentRequest struct {
	Text string `json:"text" form:"text" validate:"required,max=2200"`
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRegex.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates v and returns a ValidationError describing the first failure.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return models.NewValidationError(describe(verrs[0]))
	}
	return models.NewValidationError("Invalid request")
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Email must be a valid email address"
	case "username":
		return "Username must be 3-30 characters of letters, numbers, dots or underscores"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
