package domain

// Intent labels form a closed vocabulary. Anything the classifier cannot map
// onto one of these collapses to IntentUnknown, which the decision engine
// always denies.
const (
	IntentAskPublicPolicy     = "ask_public_policy"
	IntentWriteCode           = "write_code"
	IntentRetrieveHRPayroll   = "retrieve_hr_payroll"
	IntentRetrieveCustomerPII = "retrieve_customer_pii"
	IntentAskMetricsFinance   = "ask_metrics_finance"
	IntentAdminOverride       = "admin_override"
	IntentUnknown             = "unknown"
)

// Intents lists every classifiable label, excluding the unknown sentinel.
func Intents() []string {
	return []string{
		IntentAskPublicPolicy,
		IntentWriteCode,
		IntentRetrieveHRPayroll,
		IntentRetrieveCustomerPII,
		IntentAskMetricsFinance,
		IntentAdminOverride,
	}
}

// IntentResult is the classifier's verdict for one prompt.
//
// Confidence is the best semantic similarity score observed, in [0,1]. Note
// that it is preserved even when the label did not come from the semantic
// stage: a lexically-triggered admin_override carries the sub-threshold
// semantic best score, and an unknown result carries the best (losing) score
// rather than zero. Downstream metrics rely on this; do not normalize it away.
type IntentResult struct {
	Intent     string
	Confidence float64
}
