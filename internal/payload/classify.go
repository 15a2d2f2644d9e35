package payload

import (
	"strings"

	"github.com/nsrpetrol/pos-bridge/internal/domain"
)

// Category is a human-readable transaction classification used for logging
// and the audit index. It has no effect on the wire payload.
type Category string

const (
	CategoryCashOperation Category = "cash-operation"
	CategoryRefund        Category = "refund"
	CategoryFullVoid      Category = "full-void"
	CategoryPartialVoid   Category = "partial-void"
	CategoryPromotion     Category = "promotion"
	CategoryStandardSale  Category = "standard-sale"
)

// Classify mirrors Build's shape selection, then refines the sale case for
// observability.
func Classify(tx *domain.Transaction) Category {
	if len(tx.Items) == 0 && len(tx.Payments) == 0 {
		return CategoryCashOperation
	}
	if strings.EqualFold(tx.Type, "refund") {
		return CategoryRefund
	}

	hasVoids := len(tx.Voids) > 0
	switch {
	case hasVoids && allVoided(tx):
		return CategoryFullVoid
	case hasVoids:
		return CategoryPartialVoid
	case hasPromotions(tx):
		return CategoryPromotion
	default:
		return CategoryStandardSale
	}
}

func hasPromotions(tx *domain.Transaction) bool {
	for _, ev := range tx.Items {
		if strings.Contains(strings.ToUpper(ev.Name), "PROMO") || ev.UnitPrice.IsNegative() {
			return true
		}
	}
	return false
}
