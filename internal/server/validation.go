package server

import (
	"sync"

	"github.com/ecclesiahq/ecclesia/internal/taxid"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidators sync.Once

// RegisterValidators adds the cpfcnpj tag to gin's binding validator.
func RegisterValidators() {
	registerValidators.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("cpfcnpj", validateTaxID)
	})
}

func validateTaxID(fl validator.FieldLevel) bool {
	return taxid.Valid(fl.Field().String())
}
