// internal/gateway/normalizer.go
package gateway

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Normalize turns a raw inbound payload into a canonical GatewayEvent.
//
// It accepts the historical shapes the gateways have sent over time:
// an envelope {event|type, data:{...}} (where type may be the generic
// literal "transaction"), a flat JSON object with no envelope, a
// form-encoded body, and query parameters for GET compatibility calls.
//
// It is a pure transformation and never fails: a payload it cannot make
// sense of yields a best-effort event with empty fields, which downstream
// resolves to no_matching_sale instead of an error. Gateways retry
// aggressively on error codes, so a broken payload must never surface as
// a 5xx to the sender.
func Normalize(method, contentType string, body []byte, query url.Values) *GatewayEvent {
	if method == "GET" {
		return fromValues(query)
	}

	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return &GatewayEvent{}
		}
		return fromValues(values)
	}

	// Default to JSON: gateways are inconsistent about Content-Type headers.
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return &GatewayEvent{}
	}
	return fromJSON(raw)
}

func fromJSON(raw map[string]interface{}) *GatewayEvent {
	event := &GatewayEvent{}

	fields := raw
	if data, ok := raw["data"].(map[string]interface{}); ok {
		// Envelope shape: the envelope carries the event type, the real
		// fields live under data.
		event.EventType = firstString(raw, "event", "type")
		fields = data
	} else {
		event.EventType = firstString(raw, "event", "type", "event_type")
	}

	event.GatewayTransactionID = firstString(fields, "id", "transaction_id", "gateway_transaction_id")
	event.RawStatus = firstString(fields, "status", "payment_status")
	event.ExternalRef = firstString(fields, "external_ref", "externalRef", "reference")
	event.Amount = numberField(fields, "amount", "total", "value")
	event.PaymentMethod = firstString(fields, "payment_method", "paymentMethod", "method")
	event.Metadata = parseMetadata(fields["metadata"])
	event.Customer = parseCustomer(fields)

	return event
}

func fromValues(values url.Values) *GatewayEvent {
	fields := make(map[string]interface{}, len(values))
	for key := range values {
		fields[key] = values.Get(key)
	}
	return fromJSON(fields)
}

// parseMetadata tolerates metadata arriving as a nested object or as a JSON
// string. A value that parses as neither yields empty metadata rather than
// failing the request.
func parseMetadata(value interface{}) EventMetadata {
	var fields map[string]interface{}

	switch v := value.(type) {
	case map[string]interface{}:
		fields = v
	case string:
		if err := json.Unmarshal([]byte(v), &fields); err != nil {
			return EventMetadata{}
		}
	default:
		return EventMetadata{}
	}

	return EventMetadata{
		SaleID:       firstString(fields, "sale_id", "saleId"),
		ProductID:    firstString(fields, "product_id", "productId"),
		SellerUserID: firstString(fields, "seller_user_id", "sellerUserId", "user_id"),
		OrderID:      firstString(fields, "order_id", "orderId"),
	}
}

func parseCustomer(fields map[string]interface{}) Customer {
	if nested, ok := fields["customer"].(map[string]interface{}); ok {
		return Customer{
			Name:     firstString(nested, "name"),
			Email:    firstString(nested, "email"),
			Document: firstString(nested, "document", "doc"),
		}
	}
	return Customer{
		Name:     firstString(fields, "customer_name"),
		Email:    firstString(fields, "customer_email"),
		Document: firstString(fields, "customer_document"),
	}
}

func firstString(fields map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func numberField(fields map[string]interface{}, keys ...string) float64 {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case float64:
			return v
		case string:
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}
