package receipt

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a receipt does not exist
var ErrNotFound = errors.New("receipt not found")

// Receipt is a processed receipt with the fields extracted from it
type Receipt struct {
	ID              string    `json:"id"`
	TransactionDate string    `json:"transaction_date"`
	Amount          string    `json:"amount"`
	VAT             string    `json:"vat"`
	Filename        string    `json:"filename"`
	ContentType     string    `json:"content_type"`
	CreatedAt       time.Time `json:"created_at"`
}

// Upload is a single document handed to the pipeline
type Upload struct {
	Filename    string
	Data        []byte
	ContentType string
}

// BatchResult is the outcome of one upload in a batch
type BatchResult struct {
	Filename string   `json:"filename"`
	Receipt  *Receipt `json:"receipt,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// KPI summarizes the receipts within a date range. Amounts are in cents.
type KPI struct {
	Receipts    int    `json:"receipts"`
	AmountCents int64  `json:"amount_cents"`
	VATCents    int64  `json:"vat_cents"`
	Skipped     int    `json:"skipped"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}
