package posts

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mikepea/inkwell/pkg/inkwell/models"
)

var registerOnce sync.Once

// registerValidators adds the "poststatus" binding tag to gin's validator
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("poststatus", func(fl validator.FieldLevel) bool {
			return models.PostStatus(fl.Field().String()).Valid()
		})
	})
}
