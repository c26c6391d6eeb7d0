package scanning

import "context"

// ReceiptData holds the fields extracted from a receipt. Missing fields stay empty.
type ReceiptData struct {
	Date   string `json:"date"`
	Amount string `json:"amount"`
	VAT    string `json:"vat"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts its date, amount and VAT
	ScanReceipt(ctx context.Context, data []byte, contentType string) (*ReceiptData, error)
	// Close releases resources held by the scanner
	Close() error
}
