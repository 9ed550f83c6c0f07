package cart

import (
	"context"
	"errors"
	"testing"

	"tiemao/storefront/internal/domain"
	"tiemao/storefront/internal/store"
)

func testVariant(id string, colorName string, sizeName string, price int64) domain.Variant {
	return domain.Variant{
		ID:              id,
		ProductID:       "p-aothun",
		ColorID:         "c-" + colorName,
		ColorName:       colorName,
		SizeID:          "s-" + sizeName,
		SizeName:        sizeName,
		QuantityInStock: 10,
		OriginalPrice:   price,
		FinalPrice:      price,
	}
}

func newTestSynchronizer() (*Synchronizer, *MemoryStorage) {
	storage := NewMemoryStorage()
	return NewSynchronizer(storage, storage, "user-linh"), storage
}

func TestAddOrIncrementMergesSameVariant(t *testing.T) {
	sync, _ := newTestSynchronizer()
	ctx := context.Background()

	v := testVariant("v1", "Đen", "M", 150000)
	if _, err := sync.AddOrIncrement(ctx, v, "Áo thun", 2); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	// Price drifted between view and add; the merged line must refresh.
	v.FinalPrice = 120000
	v.HasDiscount = true
	snap, err := sync.AddOrIncrement(ctx, v, "Áo thun", 3)
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	if len(snap.Lines) != 1 {
		t.Fatalf("expected one merged line, got %d", len(snap.Lines))
	}
	if snap.Lines[0].Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", snap.Lines[0].Quantity)
	}
	if snap.Lines[0].FinalPrice != 120000 || !snap.Lines[0].HasDiscount {
		t.Fatalf("expected price refreshed from variant, got %+v", snap.Lines[0])
	}
	if snap.TotalQuantity != 5 {
		t.Fatalf("expected total quantity 5, got %d", snap.TotalQuantity)
	}
}

func TestChangeLineVariantRewritesInPlace(t *testing.T) {
	sync, _ := newTestSynchronizer()
	ctx := context.Background()

	snap, err := sync.AddOrIncrement(ctx, testVariant("v1", "Đen", "M", 150000), "Áo thun", 2)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	lineID := snap.Lines[0].ID

	snap, err = sync.ChangeLineVariant(ctx, lineID, testVariant("v2", "Trắng", "L", 160000))
	if err != nil {
		t.Fatalf("change variant failed: %v", err)
	}

	line := snap.Lines[0]
	if line.ID != lineID || line.Quantity != 2 {
		t.Fatalf("id and quantity must be preserved, got %+v", line)
	}
	if line.VariantID != "v2" || line.ColorName != "Trắng" || line.SizeName != "L" || line.FinalPrice != 160000 {
		t.Fatalf("variant-derived fields not rewritten: %+v", line)
	}
}

func TestChangeLineVariantMergesIntoExistingLine(t *testing.T) {
	sync, _ := newTestSynchronizer()
	ctx := context.Background()

	if _, err := sync.AddOrIncrement(ctx, testVariant("v1", "Đen", "M", 150000), "Áo thun", 2); err != nil {
		t.Fatalf("add v1 failed: %v", err)
	}
	snap, err := sync.AddOrIncrement(ctx, testVariant("v2", "Trắng", "L", 150000), "Áo thun", 3)
	if err != nil {
		t.Fatalf("add v2 failed: %v", err)
	}

	var v2LineID string
	for _, line := range snap.Lines {
		if line.VariantID == "v2" {
			v2LineID = line.ID
		}
	}

	before := len(snap.Lines)
	snap, err = sync.ChangeLineVariant(ctx, v2LineID, testVariant("v1", "Đen", "M", 150000))
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if len(snap.Lines) != before-1 {
		t.Fatalf("expected one fewer line after merge, got %d", len(snap.Lines))
	}
	if snap.Lines[0].VariantID != "v1" || snap.Lines[0].Quantity != 5 {
		t.Fatalf("expected surviving line with summed quantity 5, got %+v", snap.Lines[0])
	}
}

func TestChangeLineVariantUnknownLine(t *testing.T) {
	sync, _ := newTestSynchronizer()

	_, err := sync.ChangeLineVariant(context.Background(), "missing", testVariant("v1", "Đen", "M", 150000))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetQuantityClampsToOne(t *testing.T) {
	sync, _ := newTestSynchronizer()
	ctx := context.Background()

	snap, err := sync.AddOrIncrement(ctx, testVariant("v1", "Đen", "M", 150000), "Áo thun", 2)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	lineID := snap.Lines[0].ID

	snap, err = sync.SetQuantity(ctx, lineID, -3)
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if snap.Lines[0].Quantity != 1 {
		t.Fatalf("expected quantity clamped to 1, got %d", snap.Lines[0].Quantity)
	}
}

func TestRemoveAndClear(t *testing.T) {
	sync, _ := newTestSynchronizer()
	ctx := context.Background()

	snap, err := sync.AddOrIncrement(ctx, testVariant("v1", "Đen", "M", 150000), "Áo thun", 1)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := sync.AddOrIncrement(ctx, testVariant("v2", "Trắng", "L", 150000), "Áo thun", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	snap, err = sync.Remove(ctx, snap.Lines[0].ID)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(snap.Lines) != 1 {
		t.Fatalf("expected 1 line after remove, got %d", len(snap.Lines))
	}

	snap, err = sync.Clear(ctx)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if len(snap.Lines) != 0 || snap.TotalQuantity != 0 {
		t.Fatalf("expected empty cart after clear, got %+v", snap)
	}
}

func TestPersistRoundTripThroughStorage(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	first := NewSynchronizer(storage, storage, "user-linh")
	if _, err := first.AddOrIncrement(ctx, testVariant("v1", "Đen", "M", 150000), "Áo thun", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// A fresh synchronizer over the same slot sees the same canonical lines.
	second := NewSynchronizer(storage, storage, "user-linh")
	lines, err := second.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(lines) != 1 || lines[0].VariantID != "v1" || lines[0].Quantity != 2 {
		t.Fatalf("round trip mismatch: %v", lines)
	}
}

func TestEveryMutationBroadcastsSnapshot(t *testing.T) {
	storage := NewMemoryStorage()
	sync := NewSynchronizer(storage, storage, "user-linh")
	ctx := context.Background()
	events := storage.Subscribe("user-linh")

	if _, err := sync.AddOrIncrement(ctx, testVariant("v1", "Đen", "M", 150000), "Áo thun", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	select {
	case snap := <-events:
		if snap.TotalQuantity != 2 {
			t.Fatalf("expected broadcast total 2, got %d", snap.TotalQuantity)
		}
	default:
		t.Fatalf("expected a broadcast after mutation")
	}

	if _, err := sync.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	select {
	case snap := <-events:
		if snap.TotalQuantity != 0 {
			t.Fatalf("expected broadcast total 0 after clear, got %d", snap.TotalQuantity)
		}
	default:
		t.Fatalf("expected a broadcast after clear")
	}
}

func TestLoadToleratesLegacyPersistedShapes(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	legacy := []byte(`[{"variant_id":"v7","name":"Áo khoác gió - XL - Xanh","qty":"2","price":450000}]`)
	if err := storage.Save(ctx, "user-linh", legacy); err != nil {
		t.Fatalf("seed legacy doc: %v", err)
	}

	sync := NewSynchronizer(storage, storage, "user-linh")
	lines, err := sync.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected legacy line decoded, got %v", lines)
	}
	if lines[0].ProductName != "Áo khoác gió" || lines[0].SizeName != "XL" || lines[0].ColorName != "Xanh" {
		t.Fatalf("legacy combined name not split: %+v", lines[0])
	}
	if lines[0].Quantity != 2 {
		t.Fatalf("expected qty string coerced to 2, got %d", lines[0].Quantity)
	}
}
