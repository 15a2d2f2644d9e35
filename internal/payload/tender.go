package payload

import "strings"

// Tender type values accepted by the ingestion API.
const (
	TenderCash           = "Cash"
	TenderCreditCard     = "CreditCard"
	TenderDebitCard      = "DebitCard"
	TenderAccountPayment = "AccountPayment"
	TenderOther          = "Other"
)

var creditNetworks = []string{"VISA", "MASTERCARD", "AMEX", "DISCOVER"}

// MapTender classifies a free-text tender description. Matching is
// case-insensitive containment with fixed precedence; the first rule that
// matches wins, and every description maps to exactly one type.
func MapTender(desc string) string {
	d := strings.ToUpper(desc)
	if strings.Contains(d, "CASH") {
		return TenderCash
	}
	for _, network := range creditNetworks {
		if strings.Contains(d, network) {
			return TenderCreditCard
		}
	}
	if strings.Contains(d, "DEBIT") {
		return TenderDebitCard
	}
	if strings.HasPrefix(d, "ACCT#") || strings.HasPrefix(d, "ACCOUNT") {
		return TenderAccountPayment
	}
	return TenderOther
}
