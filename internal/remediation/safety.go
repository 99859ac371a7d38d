package remediation

import (
	"fmt"
	"strings"

	"github.com/truthsource/syncwatch/internal/models"
)

// Value bounds for automated writes. Anything outside these needs a human.
const (
	maxQuantity    = 1_000_000
	maxMonetary    = 1_000_000
	maxStringBytes = 512
)

// validateValue is the per-(entity type, field) safety predicate applied
// before any automated write. Fields without a predicate are not writable
// by remediation at all.
func validateValue(et models.EntityType, field string, value any) error {
	f := strings.ToLower(field)

	switch {
	case et == models.EntityInventory && isQuantityField(f):
		n, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%s.%s: value %v is not numeric", et, field, value)
		}
		if n != float64(int64(n)) {
			return fmt.Errorf("%s.%s: value %v is not a whole quantity", et, field, value)
		}
		if n < 0 {
			return fmt.Errorf("%s.%s: quantity must be non-negative, got %v", et, field, value)
		}
		if n > maxQuantity {
			return fmt.Errorf("%s.%s: quantity %v exceeds limit %d", et, field, value, maxQuantity)
		}
		return nil

	case isMonetaryField(et, f):
		n, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%s.%s: value %v is not numeric", et, field, value)
		}
		if n < 0 {
			return fmt.Errorf("%s.%s: amount must be non-negative, got %v", et, field, value)
		}
		if n > maxMonetary {
			return fmt.Errorf("%s.%s: amount %v exceeds limit %d", et, field, value, maxMonetary)
		}
		return nil

	case et == models.EntityProduct && (f == "name" || f == "title" || f == "description" || f == "sku"):
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s.%s: value %v is not a string", et, field, value)
		}
		if f != "description" && s == "" {
			return fmt.Errorf("%s.%s: value must not be empty", et, field)
		}
		if len(s) > maxStringBytes {
			return fmt.Errorf("%s.%s: value exceeds %d bytes", et, field, maxStringBytes)
		}
		return nil
	}

	return fmt.Errorf("%s.%s: no safety predicate, field is not auto-writable", et, field)
}

func isQuantityField(f string) bool {
	return strings.Contains(f, "quantity") || strings.Contains(f, "stock") || strings.Contains(f, "count")
}

func isMonetaryField(et models.EntityType, f string) bool {
	if et == models.EntityPricing {
		return strings.Contains(f, "price") || strings.Contains(f, "cost") ||
			strings.Contains(f, "amount") || f == "value"
	}
	return strings.Contains(f, "price") || strings.Contains(f, "cost")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
