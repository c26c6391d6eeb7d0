package scanning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order. Month-first wins for ambiguous slash dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"1/2/06",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// llmReceipt is the JSON shape the LLM scanners are asked to return
type llmReceipt struct {
	Date   string   `json:"date"`
	Amount *float64 `json:"amount"`
	VAT    *float64 `json:"vat"`
}

// parseReceiptJSON parses the JSON answer of an LLM scanner
func parseReceiptJSON(text string) (*ReceiptData, error) {
	text = trimCodeFence(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var raw llmReceipt
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	return &ReceiptData{
		Date:   normalizeDate(raw.Date),
		Amount: formatAmount(raw.Amount),
		VAT:    formatAmount(raw.VAT),
	}, nil
}

// ParseDate parses the date formats commonly printed on receipts
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// normalizeDate rewrites known layouts as YYYY-MM-DD. Unknown text is kept as the model returned it.
func normalizeDate(s string) string {
	d, err := ParseDate(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return d.Format("2006-01-02")
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
