package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/handler"
	"github.com/megcare/caseflow/internal/model"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationConfig represents validation middleware configuration
type ValidationConfig struct {
	CustomValidators    map[string]validator.Func
	CustomErrorMessages map[string]string
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"priority": validatePriority,
			"roletype": validateRoleType,
		},
		CustomErrorMessages: map[string]string{
			"required": "Field is required",
			"email":    "Invalid email format",
			"min":      "Value is too short",
			"max":      "Value is too long",
			"gt":       "Value must be positive",
			"priority": "Priority must be one of low, medium, high, urgent",
			"roletype": "Unsupported role",
		},
	}
}

func validatePriority(fl validator.FieldLevel) bool {
	return model.ValidPriority(fl.Field().String())
}

func validateRoleType(fl validator.FieldLevel) bool {
	_, ok := model.ParseRoleType(fl.Field().String())
	return ok
}

// RegisterValidators installs the custom tags on gin's validator engine.
func RegisterValidators(config ValidationConfig) {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	for tag, fn := range config.CustomValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
}

// Validation renders binding failures recorded with c.Error as a list of
// field errors.
func Validation(config ValidationConfig) gin.HandlerFunc {
	RegisterValidators(config)

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		var validationErrors []ValidationError
		for _, err := range c.Errors {
			var errs validator.ValidationErrors
			if !errors.As(err.Err, &errs) {
				continue
			}
			for _, e := range errs {
				msg := config.CustomErrorMessages[e.Tag()]
				if msg == "" {
					msg = e.Error()
				}
				validationErrors = append(validationErrors, ValidationError{
					Field:   e.Field(),
					Message: msg,
				})
			}
		}

		if len(validationErrors) > 0 {
			log.Debug().Int("errors", len(validationErrors)).Str("path", c.Request.URL.Path).Msg("Request validation failed")
			resp := handler.NewErrorResponse("validation failed")
			resp.Data = validationErrors
			c.AbortWithStatusJSON(http.StatusBadRequest, resp)
		}
	}
}
