package domain

// Metadata keys carried on the provider session. The spelling is what
// existing clients and sessions already use.
const (
	MetadataParcelID   = "percelId"
	MetadataParcelName = "percelName"
)

const SessionPaymentStatusPaid = "paid"

type CheckoutParams struct {
	ParcelID      string
	ParcelName    string
	AmountMinor   int64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// SessionOutcome is what the provider reports about a checkout session.
type SessionOutcome struct {
	ID              string
	PaymentStatus   string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
}

func (o *SessionOutcome) Paid() bool {
	return o.PaymentStatus == SessionPaymentStatusPaid
}

type ReconcileResult struct {
	Success          bool
	AlreadyProcessed bool
	TransactionID    string
	TrackingID       string
	Parcel           *Parcel
	Payment          *Payment
}
