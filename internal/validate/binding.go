package validate

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterBindings adds the "cpf" and "br_phone" tags to gin's validator so
// request DTOs can declare them in `binding:"..."`. It is safe to call more
// than once.
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return Register(v)
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return CPF(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("br_phone", func(fl validator.FieldLevel) bool {
		return Phone(FormatPhone(fl.Field().String()))
	})
}
