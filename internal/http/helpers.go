package http

import (
	"strings"

	"github.com/shopspring/decimal"

	"roomies/internal/core"
)

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatCurrency renders an amount as symbol plus a grouped two-decimal
// number, e.g. "£1,234.56" or "£-3.00". nil renders as "-".
func formatCurrency(symbol string, v any) string {
	var d decimal.Decimal
	switch val := v.(type) {
	case core.Money:
		d = val.Decimal()
	case *core.Money:
		if val == nil {
			return "-"
		}
		d = val.Decimal()
	case decimal.Decimal:
		d = val
	case int:
		d = decimal.NewFromInt(int64(val))
	case int64:
		d = decimal.NewFromInt(val)
	case float64:
		d = decimal.NewFromFloat(val)
	default:
		return "-"
	}
	return symbol + groupThousands(d.StringFixedBank(2))
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
