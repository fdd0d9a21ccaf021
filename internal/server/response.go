package server

import (
	"errors"

	"github.com/ecclesiahq/ecclesia/internal/taxid"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindJSON decodes the request body, aborting with a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		AbortWithError(c, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "cpfcnpj" {
				return taxid.ErrInvalidTaxID
			}
		}
	}
	return ErrInvalidBody
}
