package deposit

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Decision is the outcome of the acceptance policy.
type Decision struct {
	Accept bool
	// SkipReason is set when Accept is false and records both values for
	// audit.
	SkipReason string
}

// DecideAcceptance applies the minimum-amount acceptance policy. A deposit at
// exactly the minimum is accepted. Pure function, no side effects.
func DecideAcceptance(amount, minimum decimal.Decimal) Decision {
	if amount.LessThan(minimum) {
		return Decision{
			SkipReason: fmt.Sprintf("skipped deposit: amount %s below minimum %s", amount, minimum),
		}
	}
	return Decision{Accept: true}
}
