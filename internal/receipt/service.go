package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/vat-recogniser/internal/scanning"
)

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// DefaultBatchConcurrency bounds how many documents of a batch are analyzed at once
const DefaultBatchConcurrency = 4

// Service runs uploaded receipts through storage, scanning and persistence
type Service struct {
	db               DB
	scanner          scanning.Scanner
	storage          Storage
	idGenerator      IDGenerator
	timeSource       TimeSource
	batchConcurrency int
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:               db,
		scanner:          scanner,
		storage:          storage,
		idGenerator:      idGen,
		timeSource:       timeSrc,
		batchConcurrency: DefaultBatchConcurrency,
	}
}

// SetBatchConcurrency changes how many batch documents are processed in parallel
func (s *Service) SetBatchConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.batchConcurrency = n
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and truncates long phone-generated names
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	base = unsafeChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(whitespace.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if ext != "" {
		ext = "." + unsafeChars.ReplaceAllString(ext[1:], "")
	}
	return base + ext
}

// ProcessReceipt stores the document, extracts its fields and persists the receipt.
// The stored document is removed again when scanning or persisting fails.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(ctx, fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	receiptData, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.cleanup(savedPath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	receipt := &Receipt{
		ID:              id,
		TransactionDate: receiptData.Date,
		Amount:          receiptData.Amount,
		VAT:             receiptData.VAT,
		Filename:        savedPath,
		ContentType:     contentType,
		CreatedAt:       now,
	}

	if err := s.db.SaveReceipt(ctx, receipt); err != nil {
		s.cleanup(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Receipt processed", "id", id, "date", receipt.TransactionDate, "amount", receipt.Amount, "vat", receipt.VAT)
	return receipt, nil
}

// cleanup runs detached from the request context so a cancelled upload still removes its file
func (s *Service) cleanup(path string) {
	if err := s.storage.Delete(context.Background(), path); err != nil {
		slog.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

// ProcessReceipts runs independent pipelines concurrently. Results keep the input order;
// one failing document does not stop the others.
func (s *Service) ProcessReceipts(ctx context.Context, uploads []Upload) []BatchResult {
	results := make([]BatchResult, len(uploads))

	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)
	for i, u := range uploads {
		g.Go(func() error {
			results[i].Filename = u.Filename
			receipt, err := s.ProcessReceipt(ctx, u.Filename, u.Data, u.ContentType)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Receipt = receipt
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (s *Service) ListReceipts(ctx context.Context) ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(ctx context.Context, id string) error {
	receipt, err := s.db.GetReceipt(ctx, id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if err := s.storage.Delete(ctx, receipt.Filename); err != nil {
		// the row is still removed so the receipt does not linger without its file
		slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
	}

	if err := s.db.DeleteReceipt(ctx, id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the stored document for a receipt
func (s *Service) GetReceiptFile(ctx context.Context, id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(ctx, receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, receipt.ContentType, nil
}
