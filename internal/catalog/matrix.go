package catalog

import "tiemao/storefront/internal/domain"

type comboKey struct {
	colorID string
	sizeID  string
}

// Matrix is the per-product index from color/size to variant, rebuilt every
// time the variant list is (re)fetched and never persisted. An empty matrix
// means "no replacement currently possible", not a fault.
type Matrix struct {
	colors       []domain.ColorOption
	sizesByColor map[string][]domain.SizeOption
	lookup       map[comboKey]string
}

// Build groups a flat variant list by color, collecting for each color every
// size that has any variant record. Stock is deliberately not filtered here;
// that is the selector's job. Colors and sizes keep first-seen order and the
// first-seen name wins for duplicated ids. When excludeVariantID is set, that
// variant is omitted entirely, so the exchange dialog never offers the
// variant the customer already owns.
func Build(variants []domain.Variant, excludeVariantID string) *Matrix {
	m := &Matrix{
		colors:       []domain.ColorOption{},
		sizesByColor: make(map[string][]domain.SizeOption),
		lookup:       make(map[comboKey]string),
	}

	seenColor := make(map[string]bool)
	seenSize := make(map[comboKey]bool)

	for _, v := range variants {
		if excludeVariantID != "" && v.ID == excludeVariantID {
			continue
		}
		if v.ColorID == "" || v.SizeID == "" {
			continue
		}

		if !seenColor[v.ColorID] {
			seenColor[v.ColorID] = true
			m.colors = append(m.colors, domain.ColorOption{ID: v.ColorID, Name: v.ColorName})
		}

		key := comboKey{colorID: v.ColorID, sizeID: v.SizeID}
		if !seenSize[key] {
			seenSize[key] = true
			m.sizesByColor[v.ColorID] = append(m.sizesByColor[v.ColorID], domain.SizeOption{ID: v.SizeID, Name: v.SizeName})
			m.lookup[key] = v.ID
		}
	}

	return m
}

func (m *Matrix) Colors() []domain.ColorOption {
	return m.colors
}

func (m *Matrix) SizesFor(colorID string) []domain.SizeOption {
	return m.sizesByColor[colorID]
}

// VariantFor resolves a (color, size) pick to a variant id. A missing entry
// is an expected state: the chosen size does not exist for the chosen color.
func (m *Matrix) VariantFor(colorID string, sizeID string) (string, bool) {
	id, ok := m.lookup[comboKey{colorID: colorID, sizeID: sizeID}]
	return id, ok
}

func (m *Matrix) Empty() bool {
	return len(m.colors) == 0
}

// Options flattens the matrix into the wire shape the storefront renders.
func (m *Matrix) Options() domain.ProductOptions {
	opts := domain.ProductOptions{
		Colors:       make([]domain.ColorOption, len(m.colors)),
		SizesByColor: make(map[string][]domain.SizeOption, len(m.sizesByColor)),
	}
	copy(opts.Colors, m.colors)
	for colorID, sizes := range m.sizesByColor {
		dup := make([]domain.SizeOption, len(sizes))
		copy(dup, sizes)
		opts.SizesByColor[colorID] = dup
	}
	return opts
}
