package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// RegisterValidators регистрирует теги periodtype и mode в валидаторе gin.
// Вызывается один раз при сборке роутера.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("periodtype", func(fl validator.FieldLevel) bool {
		return entity.IsKnownPeriodType(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
		return entity.IsKnownMode(fl.Field().String())
	})
}
