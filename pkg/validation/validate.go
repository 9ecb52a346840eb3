package validation

import (
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// watchlist_type restricts values to the supported watchlist entry types
	_ = v.RegisterValidation("watchlist_type", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "domain", "phone", "ip", "name":
			return true
		}
		return false
	})

	return v
}

// ValidateStruct validates a struct using its validate tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(errs)
		}
		return err
	}
	return nil
}
