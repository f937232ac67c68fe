// Package validation holds the pure input checks used by validation test cases.
package validation

import (
	"fmt"
	"math"
	"regexp"

	"github.com/lipa-labs/payaudit/types"
)

const (
	// MinAmount and MaxAmount bound a single M-Pesa transaction, inclusive.
	MinAmount = 1
	MaxAmount = 70000
)

var phoneRegex = regexp.MustCompile(`^254\d{9}$`)

// ValidPhone reports whether phone is 254 followed by exactly nine digits.
func ValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// ValidAmount reports whether amount lies within [MinAmount, MaxAmount].
func ValidAmount(amount float64) bool {
	if math.IsNaN(amount) {
		return false
	}
	return amount >= MinAmount && amount <= MaxAmount
}

// CheckPhone returns a ValidationError when phone is not in the 2547XXXXXXXX form.
func CheckPhone(phone string) error {
	if !ValidPhone(phone) {
		return &types.ValidationError{
			Field:  "phone",
			Value:  phone,
			Reason: "must be 254 followed by 9 digits",
		}
	}
	return nil
}

// CheckAmount returns a ValidationError when amount is out of range.
func CheckAmount(amount float64) error {
	if !ValidAmount(amount) {
		return &types.ValidationError{
			Field:  "amount",
			Value:  amount,
			Reason: fmt.Sprintf("must be between %d and %d", MinAmount, MaxAmount),
		}
	}
	return nil
}

// PhoneCheck validates the "phone" parameter. Only string values are
// accepted: a YAML scalar such as +254712345678 decodes to a number and loses
// its prefix.
func PhoneCheck(params types.Params) types.TestResult {
	raw, ok := params["phone"]
	if ok && raw != nil {
		if _, isString := raw.(string); !isString {
			err := &types.ValidationError{Field: "phone", Value: raw, Reason: "must be a string"}
			return types.TestResult{Success: false, Message: err.Error(), Data: map[string]any{"phone": raw}}
		}
	}
	phone := params.String("phone")
	if err := CheckPhone(phone); err != nil {
		return types.TestResult{Success: false, Message: err.Error(), Data: map[string]any{"phone": phone}}
	}
	return types.TestResult{Success: true, Message: "phone number is valid", Data: map[string]any{"phone": phone}}
}

// AmountCheck validates the "amount" parameter. A missing or non-numeric
// amount is reported as invalid.
func AmountCheck(params types.Params) types.TestResult {
	amount, ok := params.Float("amount")
	if !ok {
		err := &types.ValidationError{Field: "amount", Value: params["amount"], Reason: "must be a number"}
		return types.TestResult{Success: false, Message: err.Error()}
	}
	if err := CheckAmount(amount); err != nil {
		return types.TestResult{Success: false, Message: err.Error(), Data: map[string]any{"amount": amount}}
	}
	return types.TestResult{Success: true, Message: "amount is within limits", Data: map[string]any{"amount": amount}}
}
