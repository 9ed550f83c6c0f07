package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tiemao/storefront/internal/cache"
	"tiemao/storefront/internal/cart"
	"tiemao/storefront/internal/catalog"
	"tiemao/storefront/internal/domain"
	"tiemao/storefront/internal/exchange"
	"tiemao/storefront/internal/pricing"
	"tiemao/storefront/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service orchestrates the catalog, cart, pricing and exchange packages over
// one Repository. Carts are keyed by the authenticated username; each user
// gets one Synchronizer guarding their slot.
type Service struct {
	repo        store.Repository
	variants    cache.VariantCache
	variantTTL  time.Duration
	cartStorage cart.Storage
	cartEvents  cart.Broadcaster
	workflow    *exchange.Workflow
	shippingFee int64

	mu    sync.Mutex
	carts map[string]*cart.Synchronizer
}

func New(repo store.Repository, variantCache cache.VariantCache, variantTTL time.Duration,
	cartStorage cart.Storage, cartEvents cart.Broadcaster, shippingFee int64) *Service {
	if variantCache == nil {
		variantCache = cache.NoopVariantCache{}
	}

	s := &Service{
		repo:        repo,
		variants:    variantCache,
		variantTTL:  variantTTL,
		cartStorage: cartStorage,
		cartEvents:  cartEvents,
		shippingFee: shippingFee,
		carts:       map[string]*cart.Synchronizer{},
	}
	s.workflow = exchange.NewWorkflow(s, exchangeStore{repo})
	return s
}

// exchangeStore adapts the Repository to the workflow's narrower store.
type exchangeStore struct {
	repo store.Repository
}

func (e exchangeStore) Create(ctx context.Context, req domain.ExchangeRequest) (*domain.ExchangeRequest, error) {
	return e.repo.CreateExchangeRequest(ctx, req)
}

func (e exchangeStore) ListByOrder(ctx context.Context, orderID string) ([]domain.ExchangeRequest, error) {
	return e.repo.ListExchangeRequestsByOrder(ctx, orderID)
}

func (s *Service) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("authentication required")
	}
	return actor, nil
}

// GetVariants serves the per-product variant list through the cache. Cache
// failures degrade to a repository read.
func (s *Service) GetVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	if productID == "" {
		return nil, store.ErrInvalidInput
	}

	if cached, ok, err := s.variants.Get(ctx, productID); err != nil {
		log.Printf("[service] WARN: variant cache read failed for %s: %v", productID, err)
	} else if ok {
		return cached, nil
	}

	variants, err := s.repo.ListVariantsByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := s.variants.Set(ctx, productID, variants, s.variantTTL); err != nil {
		log.Printf("[service] WARN: variant cache write failed for %s: %v", productID, err)
	}
	return variants, nil
}

// ProductOptions returns the full color/size index of a product; nothing is
// excluded because the product page has no "already purchased" variant.
func (s *Service) ProductOptions(ctx context.Context, productID string) (domain.ProductOptions, error) {
	variants, err := s.GetVariants(ctx, productID)
	if err != nil {
		return domain.ProductOptions{}, err
	}
	return catalog.Build(variants, "").Options(), nil
}

// SelectForSizeChange picks the variant for a newly chosen size, keeping the
// previous color when that combination is in stock and otherwise falling back
// to the first in-stock color. No variant in stock for the size refuses the
// selection with ErrOutOfStock.
func (s *Service) SelectForSizeChange(ctx context.Context, productID string, sizeID string, previousColorID string) (*domain.Variant, error) {
	variants, err := s.GetVariants(ctx, productID)
	if err != nil {
		return nil, err
	}
	chosen, ok := catalog.ChooseOnSizeChange(variants, sizeID, previousColorID)
	if !ok {
		return nil, fmt.Errorf("no stock for size %s: %w", sizeID, store.ErrOutOfStock)
	}
	return &chosen, nil
}

// SelectForColorChange never falls back: the exact (size, color) combination
// must exist in stock.
func (s *Service) SelectForColorChange(ctx context.Context, productID string, sizeID string, colorID string) (*domain.Variant, error) {
	variants, err := s.GetVariants(ctx, productID)
	if err != nil {
		return nil, err
	}
	chosen, ok := catalog.ChooseOnColorChange(variants, sizeID, colorID)
	if !ok {
		return nil, fmt.Errorf("no stock for size %s color %s: %w", sizeID, colorID, store.ErrOutOfStock)
	}
	return &chosen, nil
}

func (s *Service) cartFor(username string) *cart.Synchronizer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sync, ok := s.carts[username]; ok {
		return sync
	}
	sync := cart.NewSynchronizer(s.cartStorage, s.cartEvents, username)
	s.carts[username] = sync
	return sync
}

func (s *Service) GetCart(ctx context.Context) (domain.CartSnapshot, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	lines, err := s.cartFor(actor.Username).Load(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return cart.Snapshot(lines), nil
}

// AddToCart refuses out-of-stock variants outright; everything else defers to
// the synchronizer's merge semantics.
func (s *Service) AddToCart(ctx context.Context, req domain.CartAddRequest) (domain.CartSnapshot, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if req.VariantID == "" {
		return domain.CartSnapshot{}, store.ErrInvalidInput
	}

	variant, err := s.repo.GetVariant(ctx, req.VariantID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if !variant.InStock() {
		return domain.CartSnapshot{}, fmt.Errorf("variant %s: %w", variant.ID, store.ErrOutOfStock)
	}

	return s.cartFor(actor.Username).AddOrIncrement(ctx, *variant, req.ProductName, req.Quantity.Int())
}

// UpdateCartLine applies a variant switch, a quantity change, or both in that
// order.
func (s *Service) UpdateCartLine(ctx context.Context, lineID string, req domain.CartLineUpdateRequest) (domain.CartSnapshot, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if req.VariantID == nil && req.Quantity == nil {
		return domain.CartSnapshot{}, store.ErrInvalidInput
	}

	sync := s.cartFor(actor.Username)
	var snap domain.CartSnapshot

	if req.VariantID != nil {
		variant, err := s.repo.GetVariant(ctx, *req.VariantID)
		if err != nil {
			return domain.CartSnapshot{}, err
		}
		if !variant.InStock() {
			return domain.CartSnapshot{}, fmt.Errorf("variant %s: %w", variant.ID, store.ErrOutOfStock)
		}
		snap, err = sync.ChangeLineVariant(ctx, lineID, *variant)
		if err != nil {
			return domain.CartSnapshot{}, err
		}
	}

	if req.Quantity != nil {
		snap, err = sync.SetQuantity(ctx, lineID, req.Quantity.Int())
		if err != nil {
			return domain.CartSnapshot{}, err
		}
	}

	return snap, nil
}

func (s *Service) RemoveCartLine(ctx context.Context, lineID string) (domain.CartSnapshot, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return s.cartFor(actor.Username).Remove(ctx, lineID)
}

func (s *Service) ClearCart(ctx context.Context) (domain.CartSnapshot, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return s.cartFor(actor.Username).Clear(ctx)
}

// CartTotals prices the current cart with the flat shipping fee.
func (s *Service) CartTotals(ctx context.Context, discount *domain.Discount) (domain.Totals, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Totals{}, err
	}
	lines, err := s.cartFor(actor.Username).Load(ctx)
	if err != nil {
		return domain.Totals{}, err
	}
	return pricing.Compute(lines, discount, s.shippingFee), nil
}

func (s *Service) getOwnedOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != "admin" && order.UserID != actor.Username {
		return nil, fmt.Errorf("order %s: %w", orderID, store.ErrNotFound)
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOrdersByUser(ctx, actor.Username)
}

func (s *Service) OrderTotals(ctx context.Context, orderID string) (domain.Totals, error) {
	order, err := s.getOwnedOrder(ctx, orderID)
	if err != nil {
		return domain.Totals{}, err
	}
	return pricing.ForOrder(*order), nil
}

// OpenExchange opens a draft for a completed order the actor owns and
// flattens it for the dialog.
func (s *Service) OpenExchange(ctx context.Context, orderID string) (domain.ExchangeDraftView, error) {
	order, err := s.getOwnedOrder(ctx, orderID)
	if err != nil {
		return domain.ExchangeDraftView{}, err
	}
	draft, err := s.workflow.Open(ctx, *order)
	if err != nil {
		return domain.ExchangeDraftView{}, err
	}
	return draft.View(), nil
}

// SubmitExchange rebuilds the draft server-side and replays the submitted
// picks through it, so ProductNewID is always resolved through the matrix and
// the quantity clamp rather than trusted from the client.
func (s *Service) SubmitExchange(ctx context.Context, req domain.ExchangeCreateRequest) (*domain.ExchangeRequest, []domain.ExchangeRequest, error) {
	order, err := s.getOwnedOrder(ctx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if len(req.Details) == 0 {
		return nil, nil, fmt.Errorf("no exchange details: %w", store.ErrInvalidInput)
	}

	draft, err := s.workflow.Open(ctx, *order)
	if err != nil {
		return nil, nil, err
	}
	draft.Note = req.Note

	for _, sub := range req.Details {
		i := draft.IndexOfOldVariant(sub.ProductOldDetailID)
		if i < 0 {
			return nil, nil, fmt.Errorf("detail %s not in order %s: %w", sub.ProductOldDetailID, req.OrderID, store.ErrInvalidInput)
		}
		draft.SetReplacementColor(i, sub.ColorID)
		draft.SetReplacementSize(i, sub.SizeID)
		draft.SetQuantity(i, sub.Quantity.Int())
		draft.SetReason(i, sub.Reason)
	}

	// Only the lines the customer actually submitted go out.
	if len(req.Details) < len(draft.Details) {
		kept := make([]domain.ExchangeDetail, 0, len(req.Details))
		for _, sub := range req.Details {
			if i := draft.IndexOfOldVariant(sub.ProductOldDetailID); i >= 0 {
				kept = append(kept, draft.Details[i])
			}
		}
		draft.Details = kept
	}

	return s.workflow.Submit(ctx, draft)
}

func (s *Service) ListExchanges(ctx context.Context) ([]domain.ExchangeRequest, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExchangeRequestsByUser(ctx, actor.Username)
}

func (s *Service) ListExchangesByOrder(ctx context.Context, orderID string) ([]domain.ExchangeRequest, error) {
	if _, err := s.getOwnedOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListExchangeRequestsByOrder(ctx, orderID)
}

// UpdateExchangeStatus is the admin side of the workflow; every write is
// checked against the transition table.
func (s *Service) UpdateExchangeStatus(ctx context.Context, id string, status string) (*domain.ExchangeRequest, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}

	current, err := s.repo.GetExchangeRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := exchange.CheckTransition(current.Status, status); err != nil {
		return nil, err
	}

	return s.repo.UpdateExchangeStatus(ctx, id, status)
}
