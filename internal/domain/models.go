package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Variant is one purchasable (color, size) combination of a product, as
// returned by the catalog. The storefront never mutates a variant, it only
// reads stock and price from it.
type Variant struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	ColorID         string `json:"color_id"`
	ColorName       string `json:"color_name"`
	SizeID          string `json:"size_id"`
	SizeName        string `json:"size_name"`
	QuantityInStock int    `json:"quantity_in_stock"`
	OriginalPrice   int64  `json:"original_price"`
	HasDiscount     bool   `json:"has_discount"`
	FinalPrice      int64  `json:"final_price"`
	ImageURL        string `json:"image_url,omitempty"`
}

func (v Variant) InStock() bool {
	return v.QuantityInStock > 0
}

// DiscountPercent derives the badge percentage from the two prices.
func (v Variant) DiscountPercent() int {
	if v.OriginalPrice <= 0 {
		return 0
	}
	return int(math.Round(float64(v.OriginalPrice-v.FinalPrice) / float64(v.OriginalPrice) * 100))
}

type ColorOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SizeOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductOptions is the navigable color/size index for one product, keyed by
// color first. Serialized for the product page and the exchange dialog.
type ProductOptions struct {
	Colors       []ColorOption           `json:"colors"`
	SizesByColor map[string][]SizeOption `json:"sizes_by_color"`
}

// CartLine is one entry of the customer's cart. At most one line exists per
// variant id; switching a line onto a variant another line already holds
// merges the two.
type CartLine struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	VariantID     string `json:"variant_id"`
	ProductName   string `json:"product_name"`
	ColorName     string `json:"color_name"`
	SizeName      string `json:"size_name"`
	OriginalPrice int64  `json:"original_price"`
	FinalPrice    int64  `json:"final_price"`
	HasDiscount   bool   `json:"has_discount"`
	Quantity      int    `json:"quantity"`
	ImageURL      string `json:"image_url,omitempty"`
}

// CartSnapshot is what every cart mutation broadcasts, so independently
// rendered views (the header badge in particular) stay consistent without
// polling.
type CartSnapshot struct {
	TotalQuantity int        `json:"total_quantity"`
	Lines         []CartLine `json:"lines"`
}

// Quantity tolerates the free-text quantity inputs the storefront sends:
// a JSON number, a numeric string, or garbage. Garbage decodes to zero and
// is clamped by the cart layer.
type Quantity int

func (q *Quantity) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*q = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		*q = 0
		return nil
	}
	*q = Quantity(n)
	return nil
}

func (q Quantity) Int() int { return int(q) }

// Discount is the descriptor attached to a cart or order. When the backend
// supplies an explicit TotalAfterDiscount that value is authoritative;
// otherwise the total is derived from DiscountAmount.
type Discount struct {
	Code               string `json:"code,omitempty"`
	DiscountAmount     int64  `json:"discount_amount"`
	TotalAfterDiscount *int64 `json:"total_after_discount,omitempty"`
}

// Totals are derived on demand and never stored independently of their inputs.
type Totals struct {
	Subtotal           int64 `json:"subtotal"`
	DiscountAmount     int64 `json:"discount_amount"`
	Shipping           int64 `json:"shipping"`
	TotalAfterDiscount int64 `json:"total_after_discount"`
	GrandTotal         int64 `json:"grand_total"`
	// HasDiscount drives the discount panel: a discount row is never
	// rendered for zero or negative amounts.
	HasDiscount bool `json:"has_discount"`
}

type OrderLine struct {
	PurchasedVariantID string `json:"purchased_variant_id"`
	ProductID          string `json:"product_id"`
	ProductName        string `json:"product_name"`
	ColorName          string `json:"color_name"`
	SizeName           string `json:"size_name"`
	Quantity           int    `json:"quantity"`
	UnitPrice          int64  `json:"unit_price"`
}

type Order struct {
	ID       string      `json:"id"`
	UserID   string      `json:"user_id"`
	Status   string      `json:"status"`
	Lines    []OrderLine `json:"lines"`
	Discount *Discount   `json:"discount,omitempty"`
	Shipping int64       `json:"shipping"`
	// TotalPrice is the backend-supplied grand total of a placed order.
	// When discount fields are absent, the discount is inferred from it.
	TotalPrice int64     `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	OrderStatusPending   = "pending"
	OrderStatusShipping  = "shipping"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// ExchangeDetail is one line of an exchange request. ProductNewID is empty
// until both a color and a size resolve to an existing variant of the
// product, excluding the variant originally purchased.
type ExchangeDetail struct {
	ProductOldDetailID  string `json:"product_old_detail_id"`
	ProductOldColorName string `json:"product_old_color_name"`
	ProductOldSizeName  string `json:"product_old_size_name"`
	ProductNewID        string `json:"product_new_id,omitempty"`
	ColorID             string `json:"color_id,omitempty"`
	SizeID              string `json:"size_id,omitempty"`
	Quantity            int    `json:"quantity"`
	MaxQuantity         int    `json:"max_quantity"`
	Reason              string `json:"reason"`
	ProductID           string `json:"product_id"`
	ProductName         string `json:"product_name"`
	ProductPrice        int64  `json:"product_price"`
}

type ExchangeRequest struct {
	ID        string           `json:"id"`
	OrderID   string           `json:"order_id"`
	UserID    string           `json:"user_id"`
	Note      string           `json:"note"`
	Status    string           `json:"status"`
	Details   []ExchangeDetail `json:"details"`
	CreatedAt time.Time        `json:"created_at"`
}

const (
	ExchangeStatusPending   = "pending"
	ExchangeStatusApproved  = "approved"
	ExchangeStatusRejected  = "rejected"
	ExchangeStatusInTransit = "in_transit"
	ExchangeStatusCompleted = "completed"
	ExchangeStatusCancelled = "cancelled"
)

// ExchangeDraftView is the opened draft returned to the customer: one detail
// per original order line plus, per line, the replacement options fetched for
// that line. Options[i] is empty when line i's catalog fetch failed; that
// line simply offers no replacement.
type ExchangeDraftView struct {
	OrderID string           `json:"order_id"`
	Details []ExchangeDetail `json:"details"`
	Options []ProductOptions `json:"options"`
}

type CartAddRequest struct {
	VariantID   string   `json:"variant_id"`
	ProductName string   `json:"product_name"`
	Quantity    Quantity `json:"quantity"`
}

type CartLineUpdateRequest struct {
	Quantity  *Quantity `json:"quantity,omitempty"`
	VariantID *string   `json:"variant_id,omitempty"`
}

type ExchangeDetailSubmission struct {
	ProductOldDetailID string   `json:"product_old_detail_id"`
	ColorID            string   `json:"color_id"`
	SizeID             string   `json:"size_id"`
	Quantity           Quantity `json:"quantity"`
	Reason             string   `json:"reason"`
}

type ExchangeCreateRequest struct {
	OrderID string                     `json:"order_id"`
	Note    string                     `json:"note"`
	Details []ExchangeDetailSubmission `json:"details"`
}

type ExchangeStatusUpdateRequest struct {
	Status string `json:"status"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
