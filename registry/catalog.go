package registry

import (
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lipa-labs/payaudit/probe"
	"github.com/lipa-labs/payaudit/types"
	"github.com/lipa-labs/payaudit/validation"
)

// Test categories
const (
	CategoryValidation  = "validation"
	CategoryIntegration = "integration"
)

// Probe endpoint names used by the built-in tests
const (
	EndpointMpesaSTKPush           = "mpesa-stk-push"
	EndpointMpesaTransactionStatus = "mpesa-transaction-status"
	EndpointPaypalCreateOrder      = "paypal-create-order"
	EndpointPaypalCaptureOrder     = "paypal-capture-order"
	EndpointDatabaseHealth         = "database-health"
)

// NewDefaultRegistry registers the built-in payment test catalog. Integration
// tests call p; a nil probe makes them fail with an IntegrationError.
func NewDefaultRegistry(p probe.Probe, logger log.Logger) (*Registry, error) {
	r := NewRegistry(Config{Log: logger})
	for _, e := range defaultEntries(p) {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func defaultEntries(p probe.Probe) []Entry {
	return []Entry{
		{
			Metadata: types.TestMetadata{ID: "mpesa_phone_validation", Name: "M-Pesa phone number format", Category: CategoryValidation, Critical: true},
			Params:   types.Params{"phone": "254712345678"},
			Executor: ValidationCheck(validation.PhoneCheck),
		},
		{
			Metadata: types.TestMetadata{ID: "mpesa_amount_validation", Name: "M-Pesa amount limits", Category: CategoryValidation, Critical: true},
			Params:   types.Params{"amount": 100},
			Executor: ValidationCheck(validation.AmountCheck),
		},
		{
			Metadata: types.TestMetadata{ID: "mpesa_stk_push", Name: "M-Pesa STK push", Category: CategoryIntegration, Critical: true},
			Params:   types.Params{"phone": "254712345678", "amount": 1, "accountReference": "AUDIT"},
			Executor: IntegrationCheck{Endpoint: EndpointMpesaSTKPush, Probe: p},
		},
		{
			Metadata: types.TestMetadata{ID: "mpesa_transaction_status", Name: "M-Pesa transaction status query", Category: CategoryIntegration},
			Params:   types.Params{"checkoutRequestId": "ws_CO_AUDIT"},
			Executor: IntegrationCheck{Endpoint: EndpointMpesaTransactionStatus, Probe: p},
		},
		{
			Metadata: types.TestMetadata{ID: "paypal_create_order", Name: "PayPal order creation", Category: CategoryIntegration, Critical: true},
			Params:   types.Params{"amount": 10, "currency": "USD"},
			Executor: IntegrationCheck{
				Endpoint: EndpointPaypalCreateOrder,
				Probe:    p,
				Payload: func(params types.Params) map[string]any {
					amount, _ := params.Float("amount")
					return map[string]any{
						"intent": "CAPTURE",
						"amount": map[string]any{"value": amount, "currency_code": params.String("currency")},
					}
				},
			},
		},
		{
			Metadata: types.TestMetadata{ID: "paypal_capture_order", Name: "PayPal order capture", Category: CategoryIntegration},
			Params:   types.Params{"orderId": "AUDIT-ORDER"},
			Executor: IntegrationCheck{Endpoint: EndpointPaypalCaptureOrder, Probe: p},
		},
		{
			Metadata: types.TestMetadata{ID: "db_connection", Name: "Database connectivity", Category: CategoryIntegration, Critical: true},
			Executor: IntegrationCheck{Endpoint: EndpointDatabaseHealth, Probe: p},
		},
	}
}

// DefaultPlan is the built-in six phase audit plan covering every default test
func DefaultPlan() *types.PlanConfig {
	return &types.PlanConfig{
		Phases: []types.PhaseConfig{
			{ID: "security", Name: "Security Audit", Description: "Authentication, headers and secret handling", Category: "security", Severity: types.SeverityCritical, EstimatedDuration: 120 * time.Second},
			{ID: "performance", Name: "Performance Testing", Description: "Page load and API latency budgets", Category: "performance", Severity: types.SeverityHigh, EstimatedDuration: 90 * time.Second},
			{ID: "payments", Name: "Payment Systems", Description: "M-Pesa and PayPal flows end to end", Category: "payments", Severity: types.SeverityCritical, EstimatedDuration: 150 * time.Second},
			{ID: "database", Name: "Database Integrity", Description: "Schema, constraints and access policies", Category: "database", Severity: types.SeverityHigh, EstimatedDuration: 60 * time.Second},
			{ID: "api", Name: "API Endpoints", Description: "Contract and error handling of public endpoints", Category: "api", Severity: types.SeverityMedium, EstimatedDuration: 75 * time.Second},
			{ID: "compliance", Name: "Compliance & Accessibility", Description: "Data protection and accessibility checks", Category: "compliance", Severity: types.SeverityLow, EstimatedDuration: 45 * time.Second},
		},
	}
}
