package receipt

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/vat-recogniser/internal/scanning"
)

// KPIs totals amount and VAT for receipts dated within [from, to]. A zero bound is open.
// Receipts whose date or amounts cannot be read are counted as skipped.
func (s *Service) KPIs(ctx context.Context, from, to time.Time) (*KPI, error) {
	receipts, err := s.db.ListReceipts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	kpi := &KPI{}
	if !from.IsZero() {
		kpi.From = from.Format("2006-01-02")
	}
	if !to.IsZero() {
		kpi.To = to.Format("2006-01-02")
	}
	ranged := !from.IsZero() || !to.IsZero()

	for _, r := range receipts {
		if ranged {
			date, err := scanning.ParseDate(r.TransactionDate)
			if err != nil {
				kpi.Skipped++
				continue
			}
			if (!from.IsZero() && date.Before(from)) || (!to.IsZero() && date.After(to)) {
				continue
			}
		}

		amount, err := parseCents(r.Amount)
		if err != nil {
			kpi.Skipped++
			continue
		}
		var vat int64
		if strings.TrimSpace(r.VAT) != "" {
			if vat, err = parseCents(r.VAT); err != nil {
				kpi.Skipped++
				continue
			}
		}

		kpi.Receipts++
		kpi.AmountCents += amount
		kpi.VATCents += vat
	}
	return kpi, nil
}

// parseCents reads a printed money amount such as "$1,203.39" or "12,50 €" into cents
func parseCents(s string) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return 0, fmt.Errorf("no amount in %q", s)
	}

	dot := strings.LastIndex(cleaned, ".")
	comma := strings.LastIndex(cleaned, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case comma >= 0 && len(cleaned)-comma-1 == 2 && strings.Count(cleaned, ",") == 1:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return int64(math.Round(f * 100)), nil
}
