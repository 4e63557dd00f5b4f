// internal/gateway/event.go
package gateway

// GatewayEvent is the canonical, in-memory form of one inbound gateway
// notification. It is built per request by the normalizer and discarded
// after processing; it is never persisted.
type GatewayEvent struct {
	EventType            string        `json:"event_type"`
	GatewayTransactionID string        `json:"gateway_transaction_id"`
	RawStatus            string        `json:"raw_status"`
	ExternalRef          string        `json:"external_ref"`
	Metadata             EventMetadata `json:"metadata"`
	Amount               float64       `json:"amount"`
	PaymentMethod        string        `json:"payment_method"`
	Customer             Customer      `json:"customer"`
}

// EventMetadata carries the correlation identifiers the checkout flow handed
// to the gateway and the gateway echoed back. All fields are optional; which
// ones are present depends on the gateway and the initiating call path.
type EventMetadata struct {
	SaleID       string `json:"sale_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	SellerUserID string `json:"seller_user_id,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
}

type Customer struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Document string `json:"document,omitempty"`
}
