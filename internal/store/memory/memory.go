package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tiemao/storefront/internal/domain"
	"tiemao/storefront/internal/store"
)

type Store struct {
	mu                sync.RWMutex
	variantsByProduct map[string][]domain.Variant
	variantsByID      map[string]domain.Variant
	ordersByID        map[string]domain.Order
	exchangesByID     map[string]domain.ExchangeRequest
	usersByUsername   map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CUSTOMER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. These credentials
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	customerPwd := envOr("SEED_CUSTOMER_PASSWORD", "customer123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CUSTOMER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CUSTOMER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"linh", customerPwd, "customer"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	variants := []domain.Variant{
		// Áo thun cổ tròn: three colors, uneven size coverage, one
		// out-of-stock combination (Trắng/L).
		{ID: "vt-den-s", ProductID: "p-aothun", ColorID: "c-den", ColorName: "Đen", SizeID: "s-s", SizeName: "S", QuantityInStock: 12, OriginalPrice: 150000, FinalPrice: 150000},
		{ID: "vt-den-m", ProductID: "p-aothun", ColorID: "c-den", ColorName: "Đen", SizeID: "s-m", SizeName: "M", QuantityInStock: 8, OriginalPrice: 150000, FinalPrice: 150000},
		{ID: "vt-den-l", ProductID: "p-aothun", ColorID: "c-den", ColorName: "Đen", SizeID: "s-l", SizeName: "L", QuantityInStock: 5, OriginalPrice: 150000, FinalPrice: 150000},
		{ID: "vt-trang-m", ProductID: "p-aothun", ColorID: "c-trang", ColorName: "Trắng", SizeID: "s-m", SizeName: "M", QuantityInStock: 6, OriginalPrice: 150000, HasDiscount: true, FinalPrice: 120000},
		{ID: "vt-trang-l", ProductID: "p-aothun", ColorID: "c-trang", ColorName: "Trắng", SizeID: "s-l", SizeName: "L", QuantityInStock: 0, OriginalPrice: 150000, HasDiscount: true, FinalPrice: 120000},
		{ID: "vt-xanh-s", ProductID: "p-aothun", ColorID: "c-xanh", ColorName: "Xanh", SizeID: "s-s", SizeName: "S", QuantityInStock: 3, OriginalPrice: 150000, FinalPrice: 150000},

		// Áo sơ mi tay dài: two colors, Trắng fully stocked, Xanh only M.
		{ID: "vs-trang-m", ProductID: "p-somi", ColorID: "c-trang", ColorName: "Trắng", SizeID: "s-m", SizeName: "M", QuantityInStock: 10, OriginalPrice: 250000, FinalPrice: 250000},
		{ID: "vs-trang-l", ProductID: "p-somi", ColorID: "c-trang", ColorName: "Trắng", SizeID: "s-l", SizeName: "L", QuantityInStock: 7, OriginalPrice: 250000, FinalPrice: 250000},
		{ID: "vs-xanh-m", ProductID: "p-somi", ColorID: "c-xanh", ColorName: "Xanh", SizeID: "s-m", SizeName: "M", QuantityInStock: 4, OriginalPrice: 250000, FinalPrice: 250000},

		// Quần jean slimfit: numeric sizes, one discounted, one combo empty.
		{ID: "vj-xanh-30", ProductID: "p-jean", ColorID: "c-xanh", ColorName: "Xanh", SizeID: "s-30", SizeName: "30", QuantityInStock: 9, OriginalPrice: 320000, HasDiscount: true, FinalPrice: 280000},
		{ID: "vj-xanh-32", ProductID: "p-jean", ColorID: "c-xanh", ColorName: "Xanh", SizeID: "s-32", SizeName: "32", QuantityInStock: 0, OriginalPrice: 320000, HasDiscount: true, FinalPrice: 280000},
		{ID: "vj-den-32", ProductID: "p-jean", ColorID: "c-den", ColorName: "Đen", SizeID: "s-32", SizeName: "32", QuantityInStock: 6, OriginalPrice: 320000, FinalPrice: 320000},
	}

	byProduct := map[string][]domain.Variant{}
	byID := map[string]domain.Variant{}
	for _, v := range variants {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
		byID[v.ID] = v
	}

	now := time.Now().UTC()
	orders := map[string]domain.Order{
		// Completed order for the seeded customer: exchange-eligible, two
		// lines with different purchased quantities. 100000 + 30000 shipping
		// against a 90000 grand total implies a 40000 discount.
		"order-1001": {
			ID:     "order-1001",
			UserID: "linh",
			Status: domain.OrderStatusCompleted,
			Lines: []domain.OrderLine{
				{PurchasedVariantID: "vt-den-m", ProductID: "p-aothun", ProductName: "Áo thun cổ tròn", ColorName: "Đen", SizeName: "M", Quantity: 3, UnitPrice: 25000},
				{PurchasedVariantID: "vs-trang-m", ProductID: "p-somi", ProductName: "Áo sơ mi tay dài", ColorName: "Trắng", SizeName: "M", Quantity: 1, UnitPrice: 25000},
			},
			Shipping:   30000,
			TotalPrice: 90000,
			CreatedAt:  now.Add(-96 * time.Hour),
		},
		// Still in transit: exchange must be refused.
		"order-1002": {
			ID:     "order-1002",
			UserID: "linh",
			Status: domain.OrderStatusShipping,
			Lines: []domain.OrderLine{
				{PurchasedVariantID: "vj-xanh-30", ProductID: "p-jean", ProductName: "Quần jean slimfit", ColorName: "Xanh", SizeName: "30", Quantity: 1, UnitPrice: 280000},
			},
			Shipping:   30000,
			TotalPrice: 310000,
			CreatedAt:  now.Add(-24 * time.Hour),
		},
	}

	return &Store{
		variantsByProduct: byProduct,
		variantsByID:      byID,
		ordersByID:        orders,
		exchangesByID:     map[string]domain.ExchangeRequest{},
		usersByUsername:   seedUsers(),
	}
}

func (s *Store) ListVariantsByProduct(_ context.Context, productID string) ([]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	variants, ok := s.variantsByProduct[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	out := make([]domain.Variant, len(variants))
	copy(out, variants)
	return out, nil
}

func (s *Store) GetVariant(_ context.Context, variantID string) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variantsByID[variantID]
	if !ok {
		return nil, fmt.Errorf("variant %s: %w", variantID, store.ErrNotFound)
	}
	out := v
	return &out, nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, store.ErrNotFound)
	}
	out := order
	out.Lines = make([]domain.OrderLine, len(order.Lines))
	copy(out.Lines, order.Lines)
	return &out, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Order{}
	for _, order := range s.ordersByID {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateExchangeRequest(_ context.Context, req domain.ExchangeRequest) (*domain.ExchangeRequest, error) {
	if req.ID == "" || req.OrderID == "" {
		return nil, fmt.Errorf("exchange request needs id and order id: %w", store.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.exchangesByID[req.ID]; exists {
		return nil, fmt.Errorf("exchange request %s already exists: %w", req.ID, store.ErrInvalidInput)
	}
	s.exchangesByID[req.ID] = req
	out := req
	return &out, nil
}

func (s *Store) GetExchangeRequest(_ context.Context, id string) (*domain.ExchangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.exchangesByID[id]
	if !ok {
		return nil, fmt.Errorf("exchange request %s: %w", id, store.ErrNotFound)
	}
	out := req
	return &out, nil
}

func (s *Store) ListExchangeRequestsByUser(_ context.Context, userID string) ([]domain.ExchangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterExchanges(func(req domain.ExchangeRequest) bool { return req.UserID == userID }), nil
}

func (s *Store) ListExchangeRequestsByOrder(_ context.Context, orderID string) ([]domain.ExchangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterExchanges(func(req domain.ExchangeRequest) bool { return req.OrderID == orderID }), nil
}

// filterExchanges is called with the read lock held.
func (s *Store) filterExchanges(keep func(domain.ExchangeRequest) bool) []domain.ExchangeRequest {
	out := []domain.ExchangeRequest{}
	for _, req := range s.exchangesByID {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) UpdateExchangeStatus(_ context.Context, id string, status string) (*domain.ExchangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.exchangesByID[id]
	if !ok {
		return nil, fmt.Errorf("exchange request %s: %w", id, store.ErrNotFound)
	}
	req.Status = status
	s.exchangesByID[id] = req
	out := req
	return &out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return fmt.Errorf("user needs username and password: %w", store.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("user %s already exists: %w", user.Username, store.ErrInvalidInput)
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
