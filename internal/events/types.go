package events

// Bus event types follow the format: domain.action

const (
	EventTypePaymentCreated   = "payment.created"
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypePaymentRefunded  = "payment.refunded"
	EventTypePaymentCancelled = "payment.cancelled"
)

const AggregateTypePayment = "payment"

// Redis channel layout: one channel per payment plus a firehose for
// consumers that want every transition.
const (
	ChannelPrefixPayment  = "channel:payment:"
	ChannelSystemPayments = "channel:system:payments"
)

// BusRecord is the outbound contract with downstream consumers: one record
// per committed transition. Amount is a scale-2 decimal string.
type BusRecord struct {
	PaymentID  string `json:"paymentId"`
	MerchantID string `json:"merchantId"`
	CustomerID string `json:"customerId"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	EventType  string `json:"eventType"`
	Timestamp  int64  `json:"timestamp"`
}
