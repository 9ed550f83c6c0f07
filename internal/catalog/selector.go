package catalog

import "tiemao/storefront/internal/domain"

// Selection order everywhere in this file is the order variants were returned
// by the catalog; no price or alphabetical re-sort is applied. Candidate
// filters must stay in agreement with HasStockForSize/HasStockForCombo so the
// UI never shows a selectable-looking option the selector then refuses.

// ChooseOnSizeChange picks the variant to land on after the customer switches
// size. Candidates are the in-stock variants of the new size; the previously
// selected color is kept when it survives the stock filter, otherwise the
// first candidate wins. A false return means the size is out of stock in
// every color, which the UI renders as an out-of-stock state, not an error.
func ChooseOnSizeChange(variants []domain.Variant, newSizeID string, previousColorID string) (domain.Variant, bool) {
	var first *domain.Variant
	for i, v := range variants {
		if v.SizeID != newSizeID || !v.InStock() {
			continue
		}
		if v.ColorID == previousColorID {
			return v, true
		}
		if first == nil {
			first = &variants[i]
		}
	}
	if first == nil {
		return domain.Variant{}, false
	}
	return *first, true
}

// ChooseOnColorChange resolves an explicit color pick at the current size.
// Unlike a size change there is no fallback substitution: a color the
// customer asked for that is out of stock is refused outright.
func ChooseOnColorChange(variants []domain.Variant, sizeID string, newColorID string) (domain.Variant, bool) {
	for _, v := range variants {
		if v.SizeID == sizeID && v.ColorID == newColorID && v.InStock() {
			return v, true
		}
	}
	return domain.Variant{}, false
}

// HasStockForSize reports whether any color of the given size is in stock.
// Drives the enabled/disabled state of size buttons.
func HasStockForSize(variants []domain.Variant, sizeID string) bool {
	for _, v := range variants {
		if v.SizeID == sizeID && v.InStock() {
			return true
		}
	}
	return false
}

// HasStockForCombo reports whether the exact (size, color) combination is in
// stock. Drives the enabled/disabled state of color swatches.
func HasStockForCombo(variants []domain.Variant, sizeID string, colorID string) bool {
	for _, v := range variants {
		if v.SizeID == sizeID && v.ColorID == colorID && v.InStock() {
			return true
		}
	}
	return false
}
