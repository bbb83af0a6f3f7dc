package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/AvagyanVache/patraste-backoffice/internal/orders"
)

// New returns a configured validator with custom struct-level validation
// registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterStructValidation(declineOrderStructValidation, DeclineOrderRequest{})

	return v
}

// declineOrderStructValidation enforces the decline reason contract: the
// reason is one of the preset values, and "Other" must carry free text.
func declineOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(DeclineOrderRequest)

	switch req.Reason {
	case orders.ReasonOutOfStock, orders.ReasonKitchenOverload, orders.ReasonNotFeasible:
		// preset reason, nothing more to check
	case orders.ReasonOther:
		if req.CustomReason == "" {
			sl.ReportError(req.CustomReason, "custom_reason", "CustomReason", "required_with_other", "")
		}
	default:
		sl.ReportError(req.Reason, "reason", "Reason", "unknown_reason", "")
	}
}

// FinalReason resolves the reason string persisted on the order.
func (r DeclineOrderRequest) FinalReason() string {
	if r.Reason == orders.ReasonOther {
		return r.CustomReason
	}
	return r.Reason
}
