package server

import (
	"errors"
	"net/http"

	churchdomain "github.com/ecclesiahq/ecclesia/internal/church/domain"
	gatewaydomain "github.com/ecclesiahq/ecclesia/internal/gateway/domain"
	grantdomain "github.com/ecclesiahq/ecclesia/internal/grant/domain"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	plandomain "github.com/ecclesiahq/ecclesia/internal/plan/domain"
	prorataservice "github.com/ecclesiahq/ecclesia/internal/prorata/service"
	"github.com/ecclesiahq/ecclesia/internal/taxid"
	"github.com/gin-gonic/gin"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate_limited")
	ErrInvalidBody  = errors.New("invalid_request")
)

const internalErrorMessage = "internal server error"

// validationMessages maps client errors to the message shown to the user.
var validationMessages = map[error]string{
	ErrInvalidBody:                      "Dados inválidos. Verifique os campos obrigatórios.",
	plandomain.ErrInvalidPlan:           "Plano inválido.",
	taxid.ErrInvalidTaxID:               "CPF ou CNPJ inválido.",
	gatewaydomain.ErrInvalidBillingType: "Forma de pagamento inválida.",
	gatewaydomain.ErrCreditCardRequired: "Dados do cartão de crédito são obrigatórios.",
	gatewaydomain.ErrInvalidCustomer:    "Nome e e-mail do cliente são obrigatórios.",
	gatewaydomain.ErrPlanNotBillable:    "Este plano não possui cobrança.",
	grantdomain.ErrInvalidEmail:         "E-mail inválido.",
	grantdomain.ErrGrantExpired:         "A conta gratuita concedida expirou.",
	churchdomain.ErrInvalidChurch:       "Igreja inválida.",
}

var notFoundMessages = map[error]string{
	churchdomain.ErrChurchNotFound: "Igreja não encontrada.",
	grantdomain.ErrGrantNotFound:   "Nenhuma conta gratuita disponível para este e-mail.",
}

// AbortWithError writes the error response for err and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		observability.CaptureError(err)
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, gin.H) {
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized, gin.H{"error": "Unauthorized"}
	}
	if errors.Is(err, ErrRateLimited) {
		return http.StatusTooManyRequests, gin.H{"error": "Muitas requisições. Tente novamente em instantes."}
	}
	if errors.Is(err, prorataservice.ErrNotADowngrade) {
		return http.StatusBadRequest, gin.H{
			"error":       "A mudança solicitada não é um downgrade.",
			"isDowngrade": false,
		}
	}

	var gwErr *gatewaydomain.Error
	if errors.As(err, &gwErr) {
		status := gwErr.Status
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusBadGateway
		}
		return status, gin.H{"error": gwErr.Message}
	}
	if errors.Is(err, gatewaydomain.ErrMissingCredentials) {
		return http.StatusInternalServerError, gin.H{"error": "Gateway de pagamento não configurado."}
	}

	for target, msg := range validationMessages {
		if errors.Is(err, target) {
			return http.StatusBadRequest, gin.H{"error": msg}
		}
	}
	for target, msg := range notFoundMessages {
		if errors.Is(err, target) {
			return http.StatusNotFound, gin.H{"error": msg}
		}
	}
	return http.StatusInternalServerError, gin.H{"error": internalErrorMessage}
}
