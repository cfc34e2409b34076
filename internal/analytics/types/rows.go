package types

import (
	"math/big"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. Status columns are
// null for order_created rows.
type OrderEventRow struct {
	EventID          string             `bigquery:"event_id"`
	EventType        string             `bigquery:"event_type"`
	OccurredAt       time.Time          `bigquery:"occurred_at"`
	OrderID          string             `bigquery:"order_id"`
	UserID           *string            `bigquery:"user_id"`
	FromStatus       *string            `bigquery:"from_status"`
	ToStatus         *string            `bigquery:"to_status"`
	Source           *string            `bigquery:"source"`
	TotalAmount      *big.Rat           `bigquery:"total_amount"`
	Currency         *string            `bigquery:"currency"`
	PaymentMethod    *string            `bigquery:"payment_method"`
	GatewayPaymentID *string            `bigquery:"gateway_payment_id"`
	ItemCount        *int64             `bigquery:"item_count"`
	VendorIDs        []string           `bigquery:"vendor_ids"`
	Payload          cbigquery.NullJSON `bigquery:"payload"`
}
