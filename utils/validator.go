package utils

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once

// RegisterValidators adds the custom binding rules to gin's validator engine.
func RegisterValidators() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return ValidPassword(fl.Field().String())
		})
	})
}
