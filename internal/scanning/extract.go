package scanning

import (
	"log/slog"

	"github.com/zombor/vat-recogniser/internal/docintel"
)

// ExtractorOptions configures field extraction
type ExtractorOptions struct {
	// MinConfidence skips fields reported with a lower confidence. Zero accepts everything.
	MinConfidence float64
	Logger        *slog.Logger
}

// fieldTargets maps a receipt field to the output slot it overwrites.
// Order matters: Total is applied after Subtotal so it wins within a document.
var fieldTargets = []struct {
	name string
	slot func(*ReceiptData) *string
}{
	{"TransactionDate", func(r *ReceiptData) *string { return &r.Date }},
	{"Subtotal", func(r *ReceiptData) *string { return &r.Amount }},
	{"TotalTax", func(r *ReceiptData) *string { return &r.VAT }},
	{"Total", func(r *ReceiptData) *string { return &r.Amount }},
}

// auditFields are logged but never persisted
var auditFields = []string{"MerchantName", "Tip"}

var itemFields = []string{"Description", "Quantity", "Price", "TotalPrice"}

// ExtractReceipt reduces the recognized documents into a single ReceiptData.
// Every lookup is optional and the last document to carry a field wins.
func ExtractReceipt(result *docintel.Result, opts ExtractorOptions) *ReceiptData {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	data := &ReceiptData{}
	for i, doc := range result.Documents() {
		logger.Debug("Recognizing receipt", "index", i+1, "doc_type", doc.DocType, "confidence", doc.Confidence)

		for _, name := range auditFields {
			if f, ok := doc.Field(name); ok {
				logger.Debug("Receipt field", "field", name, "content", f.Content, "confidence", f.Confidence)
			}
		}
		logItems(logger, doc)

		for _, target := range fieldTargets {
			f, ok := doc.Field(target.name)
			if !ok {
				continue
			}
			if f.Confidence < opts.MinConfidence {
				logger.Info("Skipping low confidence field",
					"field", target.name, "content", f.Content, "confidence", f.Confidence, "min", opts.MinConfidence)
				continue
			}
			logger.Debug("Receipt field", "field", target.name, "content", f.Content, "confidence", f.Confidence)
			*target.slot(data) = f.Content
		}
	}
	return data
}

func logItems(logger *slog.Logger, doc docintel.Document) {
	items, ok := doc.Field("Items")
	if !ok {
		return
	}
	for i, item := range items.ValueArray {
		attrs := []any{"item", i + 1}
		for _, name := range itemFields {
			if f, ok := item.Property(name); ok {
				attrs = append(attrs, slog.Group(name, "content", f.Content, "confidence", f.Confidence))
			}
		}
		logger.Debug("Receipt item", attrs...)
	}
}
