package scanning

import (
	"context"
	"fmt"

	"github.com/zombor/vat-recogniser/internal/docintel"
)

// Analyzer runs a document through the document analysis service
type Analyzer interface {
	Analyze(ctx context.Context, document []byte) (*docintel.Result, error)
}

// DocIntel implements the Scanner interface using Azure Document Intelligence
type DocIntel struct {
	analyzer Analyzer
	opts     ExtractorOptions
}

// NewDocIntel creates a DocIntel scanner
func NewDocIntel(analyzer Analyzer, opts ExtractorOptions) *DocIntel {
	return &DocIntel{analyzer: analyzer, opts: opts}
}

// ScanReceipt submits the raw document as-is; the service does its own format detection
func (d *DocIntel) ScanReceipt(ctx context.Context, data []byte, contentType string) (*ReceiptData, error) {
	result, err := d.analyzer.Analyze(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("analyzing document: %w", err)
	}
	return ExtractReceipt(result, d.opts), nil
}

// Close is a no-op; the HTTP client holds no resources
func (d *DocIntel) Close() error {
	return nil
}
