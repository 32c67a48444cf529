package receipt

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// roundingBias nudges values like 1.005, stored as 1.00499999..., over the half-cent boundary
const roundingBias = 1e-9

// ClampMoney coerces v to a non-negative amount rounded to cents.
// Anything that is not a finite, non-negative number becomes 0.
func ClampMoney(v any) float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return decimal.NewFromFloat(f + roundingBias).Round(2).InexactFloat64()
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
