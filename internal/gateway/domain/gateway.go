package domain

import (
	"context"
	"errors"
	"fmt"
)

var ErrMissingCredentials = errors.New("missing_gateway_credentials")

// Error is a rejection reported by the payment provider. Status is the
// upstream HTTP status and is passed through to API callers.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error %d: %s", e.Status, e.Message)
}

type BillingType string

const (
	BillingTypeBoleto     BillingType = "BOLETO"
	BillingTypeCreditCard BillingType = "CREDIT_CARD"
	BillingTypePix        BillingType = "PIX"
	BillingTypeUndefined  BillingType = "UNDEFINED"
)

func (b BillingType) Valid() bool {
	switch b {
	case BillingTypeBoleto, BillingTypeCreditCard, BillingTypePix, BillingTypeUndefined:
		return true
	}
	return false
}

type CustomerInput struct {
	Name              string
	Email             string
	TaxID             string
	Phone             string
	ExternalReference string
}

type Customer struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	CpfCnpj           string `json:"cpfCnpj,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
}

type PaymentLinkInput struct {
	Name              string
	Description       string
	Value             float64
	SuccessURL        string
	ExternalReference string
}

type PaymentLink struct {
	ID     string  `json:"id"`
	URL    string  `json:"url"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Active bool    `json:"active"`
}

type CreditCard struct {
	HolderName  string `json:"holderName" binding:"required"`
	Number      string `json:"number" binding:"required"`
	ExpiryMonth string `json:"expiryMonth" binding:"required"`
	ExpiryYear  string `json:"expiryYear" binding:"required"`
	CCV         string `json:"ccv" binding:"required"`
}

type CreditCardHolderInfo struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	CpfCnpj       string `json:"cpfCnpj" binding:"required,cpfcnpj"`
	PostalCode    string `json:"postalCode" binding:"required"`
	AddressNumber string `json:"addressNumber" binding:"required"`
	Phone         string `json:"phone,omitempty"`
}

type SubscriptionInput struct {
	CustomerID        string
	BillingType       BillingType
	Value             float64
	NextDueDate       string
	Description       string
	ExternalReference string
	CreditCard        *CreditCard
	HolderInfo        *CreditCardHolderInfo
}

type Subscription struct {
	ID          string      `json:"id"`
	Customer    string      `json:"customer"`
	BillingType BillingType `json:"billingType"`
	Value       float64     `json:"value"`
	NextDueDate string      `json:"nextDueDate"`
	Cycle       string      `json:"cycle"`
	Status      string      `json:"status"`
}

// Gateway is the provider surface the billing core depends on.
type Gateway interface {
	// CreateCustomer returns the existing customer with the same email when
	// there is one.
	CreateCustomer(ctx context.Context, input CustomerInput) (*Customer, error)
	CreatePaymentLink(ctx context.Context, input PaymentLinkInput) (*PaymentLink, error)
	CreateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error)
}

var (
	ErrInvalidBillingType = errors.New("invalid_billing_type")
	ErrCreditCardRequired = errors.New("credit_card_required")
	ErrInvalidCustomer    = errors.New("invalid_customer")
	ErrPlanNotBillable    = errors.New("plan_not_billable")
)
