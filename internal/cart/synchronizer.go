package cart

import (
	"context"
	"log"
	"sync"

	"tiemao/storefront/internal/domain"
	"tiemao/storefront/internal/store"
	"tiemao/storefront/internal/xid"
)

// Synchronizer owns one cart slot. Every mutation is a serialized
// read-modify-write followed by a broadcast, so no two mutations of the same
// cart interleave their read and write. It assumes a single active tab drives
// mutations; cross-tab consistency is best-effort via the broadcast.
type Synchronizer struct {
	mu      sync.Mutex
	storage Storage
	events  Broadcaster
	key     string
}

func NewSynchronizer(storage Storage, events Broadcaster, key string) *Synchronizer {
	return &Synchronizer{storage: storage, events: events, key: key}
}

// Load reads the persisted cart and returns the canonical lines. Malformed
// persisted data yields an empty cart; only storage I/O failures surface as
// errors.
func (s *Synchronizer) Load(ctx context.Context) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Synchronizer) load(ctx context.Context) ([]domain.CartLine, error) {
	raw, err := s.storage.Load(ctx, s.key)
	if err != nil {
		return nil, err
	}
	return DecodeLines(raw), nil
}

// AddOrIncrement appends a line for the variant, or bumps the quantity of the
// line already holding it. Price fields are refreshed from the variant either
// way, since prices can drift between viewing and adding.
func (s *Synchronizer) AddOrIncrement(ctx context.Context, variant domain.Variant, productName string, qty int) (domain.CartSnapshot, error) {
	if qty < 1 {
		qty = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	found := false
	for i := range lines {
		if lines[i].VariantID == variant.ID {
			lines[i].Quantity += qty
			applyVariant(&lines[i], variant)
			found = true
			break
		}
	}
	if !found {
		line := domain.CartLine{
			ID:          xid.New("line"),
			ProductID:   variant.ProductID,
			ProductName: productName,
			Quantity:    qty,
			ImageURL:    variant.ImageURL,
		}
		applyVariant(&line, variant)
		lines = append(lines, line)
	}

	return s.persist(ctx, lines)
}

// ChangeLineVariant rewrites a line's variant-derived fields in place,
// preserving id and quantity. If another line already targets the new
// variant, the two merge: quantities sum and the edited line is removed.
// This is the one case where an edit removes a line as a side effect.
func (s *Synchronizer) ChangeLineVariant(ctx context.Context, lineID string, variant domain.Variant) (domain.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	src := -1
	dst := -1
	for i := range lines {
		if lines[i].ID == lineID {
			src = i
		} else if lines[i].VariantID == variant.ID {
			dst = i
		}
	}
	if src == -1 {
		return domain.CartSnapshot{}, store.ErrNotFound
	}

	if dst >= 0 {
		lines[dst].Quantity += lines[src].Quantity
		applyVariant(&lines[dst], variant)
		lines = append(lines[:src], lines[src+1:]...)
	} else {
		applyVariant(&lines[src], variant)
	}

	return s.persist(ctx, lines)
}

// SetQuantity clamps to at least 1: the quantity field is free text in the
// storefront and junk input coerces rather than errors.
func (s *Synchronizer) SetQuantity(ctx context.Context, lineID string, qty int) (domain.CartSnapshot, error) {
	if qty < 1 {
		qty = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	for i := range lines {
		if lines[i].ID == lineID {
			lines[i].Quantity = qty
			return s.persist(ctx, lines)
		}
	}
	return domain.CartSnapshot{}, store.ErrNotFound
}

func (s *Synchronizer) Remove(ctx context.Context, lineID string) (domain.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	for i := range lines {
		if lines[i].ID == lineID {
			lines = append(lines[:i], lines[i+1:]...)
			return s.persist(ctx, lines)
		}
	}
	return domain.CartSnapshot{}, store.ErrNotFound
}

func (s *Synchronizer) Clear(ctx context.Context) (domain.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, []domain.CartLine{})
}

// persist writes the canonical cart back, recomputes the total quantity and
// broadcasts the snapshot. Broadcast failures are logged, not fatal: the slot
// is already consistent and the badge catches up on its next load.
func (s *Synchronizer) persist(ctx context.Context, lines []domain.CartLine) (domain.CartSnapshot, error) {
	doc, err := EncodeLines(lines)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if err := s.storage.Save(ctx, s.key, doc); err != nil {
		return domain.CartSnapshot{}, err
	}

	snapshot := Snapshot(lines)
	if s.events != nil {
		if err := s.events.Publish(ctx, s.key, snapshot); err != nil {
			log.Printf("[cart] WARN: broadcast failed for %s: %v", s.key, err)
		}
	}
	return snapshot, nil
}

// Snapshot derives the broadcast payload from a line list.
func Snapshot(lines []domain.CartLine) domain.CartSnapshot {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return domain.CartSnapshot{TotalQuantity: total, Lines: lines}
}

func applyVariant(line *domain.CartLine, variant domain.Variant) {
	line.VariantID = variant.ID
	line.ColorName = variant.ColorName
	line.SizeName = variant.SizeName
	line.OriginalPrice = variant.OriginalPrice
	line.FinalPrice = variant.FinalPrice
	line.HasDiscount = variant.HasDiscount
	if line.ProductID == "" {
		line.ProductID = variant.ProductID
	}
	if variant.ImageURL != "" {
		line.ImageURL = variant.ImageURL
	}
}
