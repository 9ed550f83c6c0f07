package cart

import (
	"encoding/json"
	"strconv"
	"strings"

	"tiemao/storefront/internal/domain"
	"tiemao/storefront/internal/xid"
)

// DecodeLines turns whatever is in the persisted cart slot into canonical
// CartLines. Three historical shapes are tolerated: the canonical shape, an
// older shape using "qty" instead of "quantity", and a legacy shape whose
// "name" field packed "Name - Size - Color" into one string. Malformed or
// missing documents yield an empty cart, never an error, so legacy-shape
// tolerance stays out of the rest of the engine.
func DecodeLines(raw []byte) []domain.CartLine {
	if len(raw) == 0 {
		return []domain.CartLine{}
	}

	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return []domain.CartLine{}
	}

	lines := make([]domain.CartLine, 0, len(entries))
	for _, entry := range entries {
		if line, ok := normalizeEntry(entry); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

// EncodeLines serializes the canonical shape back into the slot.
func EncodeLines(lines []domain.CartLine) ([]byte, error) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return json.Marshal(lines)
}

func normalizeEntry(entry map[string]any) (domain.CartLine, bool) {
	line := domain.CartLine{
		ID:            stringField(entry, "id"),
		ProductID:     stringField(entry, "product_id"),
		VariantID:     stringField(entry, "variant_id"),
		ProductName:   stringField(entry, "product_name"),
		ColorName:     stringField(entry, "color_name"),
		SizeName:      stringField(entry, "size_name"),
		OriginalPrice: int64Field(entry, "original_price"),
		FinalPrice:    int64Field(entry, "final_price"),
		HasDiscount:   boolField(entry, "has_discount"),
		ImageURL:      stringField(entry, "image_url"),
	}

	// Legacy combined field: "Áo thun cổ tròn - M - Đen".
	if line.ProductName == "" {
		if combined := stringField(entry, "name"); combined != "" {
			parts := strings.Split(combined, " - ")
			line.ProductName = parts[0]
			if len(parts) > 1 && line.SizeName == "" {
				line.SizeName = parts[1]
			}
			if len(parts) > 2 && line.ColorName == "" {
				line.ColorName = parts[2]
			}
		}
	}

	qty := intField(entry, "quantity")
	if qty == 0 {
		qty = intField(entry, "qty")
	}
	if qty < 1 {
		qty = 1
	}
	line.Quantity = qty

	if line.FinalPrice == 0 {
		line.FinalPrice = int64Field(entry, "price")
	}
	if line.OriginalPrice == 0 {
		line.OriginalPrice = line.FinalPrice
	}

	// A line that cannot be tied back to a variant is unrecoverable.
	if line.VariantID == "" {
		return domain.CartLine{}, false
	}
	if line.ID == "" {
		line.ID = xid.New("line")
	}
	return line, true
}

func stringField(entry map[string]any, key string) string {
	if v, ok := entry[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intField(entry map[string]any, key string) int {
	switch v := entry[key].(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func int64Field(entry map[string]any, key string) int64 {
	switch v := entry[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func boolField(entry map[string]any, key string) bool {
	v, ok := entry[key].(bool)
	return ok && v
}
