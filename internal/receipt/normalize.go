package receipt

import (
	"encoding/json"
	"strconv"
	"strings"
)

// summaryTokens mark receipt summary rows that must never become line items
var summaryTokens = []string{"SUBTOTAL", "TOTAL", "TAX", "TIP", "CHANGE", "BALANCE DUE"}

// Normalize converts a decoded model response into a Receipt.
// The input is untrusted: unexpected shapes fall back to defaults, never to an error.
func Normalize(raw any) Receipt {
	out := emptyReceipt()

	doc, ok := raw.(map[string]any)
	if !ok {
		return out
	}

	if store := strings.TrimSpace(text(doc["store"])); store != "" {
		out.Store = store
	}

	items, _ := doc["items"].([]any)
	for _, it := range items {
		entry, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(text(entry["name"]))
		if name == "" || isSummaryLine(name) {
			continue
		}
		out.Items = append(out.Items, LineItem{
			Name:  name,
			Price: ClampMoney(entry["price"]),
		})
	}

	out.Tax = ClampMoney(doc["tax"])
	out.Discount = ClampMoney(doc["discount"])
	out.Tip = ClampMoney(doc["tip"])
	out.Total = ClampMoney(doc["total"])

	return out
}

func isSummaryLine(name string) bool {
	upper := strings.ToUpper(name)
	for _, token := range summaryTokens {
		if strings.Contains(upper, token) {
			return true
		}
	}
	return false
}

// text renders scalar values as strings; containers, null and false read as empty.
func text(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		if f, err := s.Float64(); err == nil && f == 0 {
			return ""
		}
		return s.String()
	case float64:
		if s == 0 {
			return ""
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		if s {
			return "true"
		}
		return ""
	default:
		return ""
	}
}
