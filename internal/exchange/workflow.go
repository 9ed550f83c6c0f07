package exchange

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"tiemao/storefront/internal/catalog"
	"tiemao/storefront/internal/domain"
	"tiemao/storefront/internal/xid"
)

var ErrOrderNotCompleted = errors.New("exchange requires a completed order")

// ValidationError is workflow-level, not line-specific: the dialog shows one
// message for the whole draft.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// CatalogSource is the catalog boundary the workflow fetches variants from.
type CatalogSource interface {
	GetVariants(ctx context.Context, productID string) ([]domain.Variant, error)
}

// RequestStore persists submitted requests and serves the per-order history
// the customer sees after submitting.
type RequestStore interface {
	Create(ctx context.Context, req domain.ExchangeRequest) (*domain.ExchangeRequest, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.ExchangeRequest, error)
}

type Workflow struct {
	catalog  CatalogSource
	requests RequestStore
}

func NewWorkflow(catalogSource CatalogSource, requests RequestStore) *Workflow {
	return &Workflow{catalog: catalogSource, requests: requests}
}

type lineOptions struct {
	variants []domain.Variant
	matrix   *catalog.Matrix
}

// Draft is an exchange request being assembled: one detail per original order
// line, with per-line replacement options. Mutations happen through the
// setters so ProductNewID is only ever resolved through the matrix.
type Draft struct {
	OrderID string
	UserID  string
	Note    string
	Details []domain.ExchangeDetail
	options []lineOptions
}

// Open seeds a draft from a completed order. Per-line variant fetches run
// concurrently, each writing only its own slot; a failed fetch leaves that
// line without replacement options instead of aborting the dialog. The old
// variant is excluded from each line's matrix so a variant can never be
// "replaced" with itself.
func (w *Workflow) Open(ctx context.Context, order domain.Order) (*Draft, error) {
	if order.Status != domain.OrderStatusCompleted {
		return nil, ErrOrderNotCompleted
	}

	draft := &Draft{
		OrderID: order.ID,
		UserID:  order.UserID,
		Details: make([]domain.ExchangeDetail, len(order.Lines)),
		options: make([]lineOptions, len(order.Lines)),
	}

	for i, line := range order.Lines {
		draft.Details[i] = domain.ExchangeDetail{
			ProductOldDetailID:  line.PurchasedVariantID,
			ProductOldColorName: line.ColorName,
			ProductOldSizeName:  line.SizeName,
			Quantity:            1,
			MaxQuantity:         line.Quantity,
			ProductID:           line.ProductID,
			ProductName:         line.ProductName,
			ProductPrice:        line.UnitPrice,
		}
	}

	var wg sync.WaitGroup
	for i, line := range order.Lines {
		wg.Add(1)
		go func(i int, productID string, oldVariantID string) {
			defer wg.Done()
			variants, err := w.catalog.GetVariants(ctx, productID)
			if err != nil {
				log.Printf("[exchange] WARN: variant fetch failed for product %s: %v", productID, err)
				return
			}
			draft.options[i] = lineOptions{
				variants: variants,
				matrix:   catalog.Build(variants, oldVariantID),
			}
		}(i, line.ProductID, line.PurchasedVariantID)
	}
	wg.Wait()

	return draft, nil
}

// OptionsFor exposes line i's matrix for rendering. A line whose fetch failed
// (or that has no alternatives) reports empty options.
func (d *Draft) OptionsFor(i int) domain.ProductOptions {
	if i < 0 || i >= len(d.options) || d.options[i].matrix == nil {
		return domain.ProductOptions{
			Colors:       []domain.ColorOption{},
			SizesByColor: map[string][]domain.SizeOption{},
		}
	}
	return d.options[i].matrix.Options()
}

// View flattens the draft for the storefront dialog.
func (d *Draft) View() domain.ExchangeDraftView {
	view := domain.ExchangeDraftView{
		OrderID: d.OrderID,
		Details: make([]domain.ExchangeDetail, len(d.Details)),
		Options: make([]domain.ProductOptions, len(d.Details)),
	}
	copy(view.Details, d.Details)
	for i := range d.Details {
		view.Options[i] = d.OptionsFor(i)
	}
	return view
}

// IndexOfOldVariant maps a submitted detail back to its draft line.
func (d *Draft) IndexOfOldVariant(oldVariantID string) int {
	for i, detail := range d.Details {
		if detail.ProductOldDetailID == oldVariantID {
			return i
		}
	}
	return -1
}

// SetReplacementColor resets size and resolved variant: the matrix is keyed
// by color first, so a new color invalidates any previously chosen size.
func (d *Draft) SetReplacementColor(i int, colorID string) {
	if i < 0 || i >= len(d.Details) {
		return
	}
	d.Details[i].ColorID = colorID
	d.Details[i].SizeID = ""
	d.Details[i].ProductNewID = ""
}

// SetReplacementSize resolves ProductNewID through the matrix lookup. A size
// with no entry for the chosen color leaves ProductNewID unset; that state is
// reachable in the dialog and tolerated until Validate.
func (d *Draft) SetReplacementSize(i int, sizeID string) {
	if i < 0 || i >= len(d.Details) {
		return
	}
	d.Details[i].SizeID = sizeID
	d.Details[i].ProductNewID = ""

	if d.options[i].matrix == nil || d.Details[i].ColorID == "" {
		return
	}
	if variantID, ok := d.options[i].matrix.VariantFor(d.Details[i].ColorID, sizeID); ok {
		d.Details[i].ProductNewID = variantID
	}
}

// SetQuantity clamps into [1, MaxQuantity], the quantity purchased in the
// original order line.
func (d *Draft) SetQuantity(i int, qty int) {
	if i < 0 || i >= len(d.Details) {
		return
	}
	if qty < 1 {
		qty = 1
	}
	if max := d.Details[i].MaxQuantity; max > 0 && qty > max {
		qty = max
	}
	d.Details[i].Quantity = qty
}

func (d *Draft) SetReason(i int, reason string) {
	if i < 0 || i >= len(d.Details) {
		return
	}
	d.Details[i].Reason = reason
}

// Validate scans the entire detail list before reporting, and reports the
// first failing rule found. The message is workflow-level because the dialog
// shows one banner, not per-line errors.
func (d *Draft) Validate() *ValidationError {
	unresolved := false
	badQuantity := false
	for _, detail := range d.Details {
		if detail.ProductNewID == "" {
			unresolved = true
		}
		if detail.Quantity < 1 || detail.Quantity > detail.MaxQuantity {
			badQuantity = true
		}
	}

	if unresolved {
		return &ValidationError{
			Code:    "replacement_unresolved",
			Message: "choose a replacement color and size for every item to exchange",
		}
	}
	if badQuantity {
		return &ValidationError{
			Code:    "quantity_out_of_range",
			Message: "exchange quantity must be between 1 and the purchased quantity",
		}
	}
	return nil
}

// Submit validates, persists the full detail list atomically and re-reads the
// order's request history so the customer immediately sees the new request
// alongside prior ones. On failure the draft is untouched and retryable.
func (w *Workflow) Submit(ctx context.Context, draft *Draft) (*domain.ExchangeRequest, []domain.ExchangeRequest, error) {
	if verr := draft.Validate(); verr != nil {
		return nil, nil, verr
	}

	req := domain.ExchangeRequest{
		ID:        xid.New("exch"),
		OrderID:   draft.OrderID,
		UserID:    draft.UserID,
		Note:      draft.Note,
		Status:    domain.ExchangeStatusPending,
		Details:   make([]domain.ExchangeDetail, len(draft.Details)),
		CreatedAt: time.Now().UTC(),
	}
	copy(req.Details, draft.Details)

	created, err := w.requests.Create(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	history, err := w.requests.ListByOrder(ctx, draft.OrderID)
	if err != nil {
		// The request went through; an empty history is a display
		// degradation, not a submit failure.
		log.Printf("[exchange] WARN: history reload failed for order %s: %v", draft.OrderID, err)
		history = []domain.ExchangeRequest{*created}
	}

	return created, history, nil
}
