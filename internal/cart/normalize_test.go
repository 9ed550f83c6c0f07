package cart

import (
	"testing"
)

func TestDecodeLinesCanonicalShape(t *testing.T) {
	raw := []byte(`[
		{"id":"l1","product_id":"p1","variant_id":"v1","product_name":"Áo thun cổ tròn","color_name":"Đen","size_name":"M","original_price":150000,"final_price":120000,"has_discount":true,"quantity":2}
	]`)

	lines := DecodeLines(raw)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if line.VariantID != "v1" || line.Quantity != 2 || line.FinalPrice != 120000 || !line.HasDiscount {
		t.Fatalf("canonical decode mismatch: %+v", line)
	}
}

func TestDecodeLinesQtyAlias(t *testing.T) {
	raw := []byte(`[{"variant_id":"v1","product_name":"Áo sơ mi","qty":3,"final_price":200000}]`)

	lines := DecodeLines(raw)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Quantity != 3 {
		t.Fatalf("expected qty alias honored, got %d", lines[0].Quantity)
	}
	if lines[0].ID == "" {
		t.Fatalf("expected a generated line id")
	}
	if lines[0].OriginalPrice != 200000 {
		t.Fatalf("expected original price backfilled from final price, got %d", lines[0].OriginalPrice)
	}
}

func TestDecodeLinesLegacyCombinedName(t *testing.T) {
	raw := []byte(`[{"variant_id":"v9","name":"Áo thun cổ tròn - M - Đen","price":99000,"qty":1}]`)

	lines := DecodeLines(raw)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if line.ProductName != "Áo thun cổ tròn" {
		t.Fatalf("expected product name split out, got %q", line.ProductName)
	}
	if line.SizeName != "M" || line.ColorName != "Đen" {
		t.Fatalf("expected size/color split out, got size=%q color=%q", line.SizeName, line.ColorName)
	}
	if line.FinalPrice != 99000 {
		t.Fatalf("expected legacy price field honored, got %d", line.FinalPrice)
	}
}

func TestDecodeLinesMalformedDocumentYieldsEmptyCart(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("not json"), []byte(`{"a":1}`)} {
		lines := DecodeLines(raw)
		if lines == nil || len(lines) != 0 {
			t.Fatalf("expected empty cart for %q, got %v", raw, lines)
		}
	}
}

func TestDecodeLinesDropsEntriesWithoutVariant(t *testing.T) {
	raw := []byte(`[{"product_name":"mồ côi"},{"variant_id":"v1","quantity":1}]`)

	lines := DecodeLines(raw)
	if len(lines) != 1 || lines[0].VariantID != "v1" {
		t.Fatalf("expected only the recoverable entry to survive, got %v", lines)
	}
}

func TestDecodeLinesClampsQuantityToOne(t *testing.T) {
	raw := []byte(`[{"variant_id":"v1","quantity":-4},{"variant_id":"v2","qty":"abc"}]`)

	lines := DecodeLines(raw)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line.Quantity != 1 {
			t.Fatalf("expected quantity clamped to 1, got %d for %s", line.Quantity, line.VariantID)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := DecodeLines([]byte(`[
		{"id":"l1","product_id":"p1","variant_id":"v1","product_name":"Áo thun","color_name":"Đen","size_name":"S","original_price":150000,"final_price":120000,"has_discount":true,"quantity":2},
		{"id":"l2","product_id":"p2","variant_id":"v2","product_name":"Quần jean","color_name":"Xanh","size_name":"32","original_price":320000,"final_price":320000,"quantity":1}
	]`))

	doc, err := EncodeLines(original)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded := DecodeLines(doc)

	if len(decoded) != len(original) {
		t.Fatalf("round trip changed line count: %d != %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Fatalf("round trip mutated line %d: %+v != %+v", i, decoded[i], original[i])
		}
	}
}
