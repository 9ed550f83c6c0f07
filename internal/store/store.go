package store

import (
	"context"
	"errors"

	"tiemao/storefront/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrOutOfStock   = errors.New("out of stock")
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the data source behind the reconciliation engine: the catalog
// (variants), the order history, the exchange request ledger, and the user
// accounts the auth layer reads.
type Repository interface {
	ListVariantsByProduct(ctx context.Context, productID string) ([]domain.Variant, error)
	GetVariant(ctx context.Context, variantID string) (*domain.Variant, error)

	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)

	CreateExchangeRequest(ctx context.Context, req domain.ExchangeRequest) (*domain.ExchangeRequest, error)
	GetExchangeRequest(ctx context.Context, id string) (*domain.ExchangeRequest, error)
	ListExchangeRequestsByUser(ctx context.Context, userID string) ([]domain.ExchangeRequest, error)
	ListExchangeRequestsByOrder(ctx context.Context, orderID string) ([]domain.ExchangeRequest, error)
	UpdateExchangeStatus(ctx context.Context, id string, status string) (*domain.ExchangeRequest, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
