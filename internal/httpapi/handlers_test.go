package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tiemao/storefront/internal/cache"
	"tiemao/storefront/internal/cart"
	"tiemao/storefront/internal/domain"
	"tiemao/storefront/internal/service"
	"tiemao/storefront/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	storage := cart.NewMemoryStorage()
	svc := service.New(repo, cache.NoopVariantCache{}, time.Minute, storage, storage, 30000)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginAs(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d (%s)", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func doJSON(handler http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "linh", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	handler := newTestAPI(t).Handler()

	var last int
	for i := 0; i < 7; i++ {
		rec := doJSON(handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "linh", "password": "wrong",
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", last)
	}
}

func TestHandleRegisterThenUseCart(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(handler, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "ngocanh", "password": "matkhau99",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d (%s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.Role != "customer" || resp.AccessToken == "" {
		t.Fatalf("expected customer token, got %+v", resp)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/cart", resp.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cart read failed for fresh account: %d", rec.Code)
	}
}

func TestProductVariantsAreAnonymous(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(handler, http.MethodGet, "/api/v1/products/p-aothun/variants", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Variants []domain.Variant `json:"variants"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Variants) != 6 {
		t.Fatalf("expected 6 seeded variants, got %d", len(body.Variants))
	}
}

func TestProductOptionsGroupedByColor(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(handler, http.MethodGet, "/api/v1/products/p-aothun/options", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var options domain.ProductOptions
	if err := json.NewDecoder(rec.Body).Decode(&options); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(options.Colors) != 3 {
		t.Fatalf("expected 3 colors, got %v", options.Colors)
	}
	if len(options.SizesByColor["c-den"]) != 3 {
		t.Fatalf("expected 3 sizes for Đen, got %v", options.SizesByColor["c-den"])
	}
}

func TestSelectionFallsBackOnSizeChange(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(handler, http.MethodGet,
		"/api/v1/products/p-aothun/selection?size_id=s-l&previous_color_id=c-trang", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Variant domain.Variant `json:"variant"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Variant.ID != "vt-den-l" {
		t.Fatalf("expected fallback variant vt-den-l, got %s", body.Variant.ID)
	}
}

func TestSelectionColorChangeConflictsWhenOutOfStock(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(handler, http.MethodGet,
		"/api/v1/products/p-aothun/selection?size_id=s-l&color_id=c-trang", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for out-of-stock combination, got %d", rec.Code)
	}
}

func TestCartEndpointsRequireAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(handler, http.MethodGet, "/api/v1/cart", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCartFlowOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginAs(t, handler, "linh", "customer123")

	rec := doJSON(handler, http.MethodPost, "/api/v1/cart/items", token, map[string]any{
		"variant_id": "vt-den-m", "product_name": "Áo thun cổ tròn", "quantity": 2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add failed: %d (%s)", rec.Code, rec.Body.String())
	}
	var snap domain.CartSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TotalQuantity != 2 || len(snap.Lines) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	lineID := snap.Lines[0].ID

	// Quantity arrives as a string from some storefront inputs.
	rec = doJSON(handler, http.MethodPatch, "/api/v1/cart/items/"+lineID, token, map[string]any{
		"quantity": "4",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch failed: %d (%s)", rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Lines[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", snap.Lines[0].Quantity)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/cart/totals", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("totals failed: %d", rec.Code)
	}
	var totals domain.Totals
	if err := json.NewDecoder(rec.Body).Decode(&totals); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if totals.Subtotal != 600000 || totals.GrandTotal != 630000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	rec = doJSON(handler, http.MethodDelete, "/api/v1/cart/items/"+lineID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", rec.Code)
	}

	rec = doJSON(handler, http.MethodDelete, "/api/v1/cart", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear failed: %d", rec.Code)
	}
}

func TestAddOutOfStockVariantConflicts(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginAs(t, handler, "linh", "customer123")

	rec := doJSON(handler, http.MethodPost, "/api/v1/cart/items", token, map[string]any{
		"variant_id": "vt-trang-l", "product_name": "Áo thun cổ tròn", "quantity": 1,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestOrderTotalsOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginAs(t, handler, "linh", "customer123")

	rec := doJSON(handler, http.MethodGet, "/api/v1/orders/order-1001/totals", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var totals domain.Totals
	if err := json.NewDecoder(rec.Body).Decode(&totals); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if totals.DiscountAmount != 40000 || totals.GrandTotal != 90000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestExchangeFlowOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	customerToken := loginAs(t, handler, "linh", "customer123")
	adminToken := loginAs(t, handler, "admin", "admin123")

	rec := doJSON(handler, http.MethodGet, "/api/v1/orders/order-1001/exchange-draft", customerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("draft failed: %d (%s)", rec.Code, rec.Body.String())
	}
	var view domain.ExchangeDraftView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Details) != 2 || len(view.Options) != 2 {
		t.Fatalf("unexpected draft: %+v", view)
	}

	rec = doJSON(handler, http.MethodPost, "/api/v1/exchanges", customerToken, map[string]any{
		"order_id": "order-1001",
		"note":     "đổi sang màu trắng",
		"details": []map[string]any{
			{"product_old_detail_id": "vt-den-m", "color_id": "c-trang", "size_id": "s-m", "quantity": 2, "reason": "chật"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit failed: %d (%s)", rec.Code, rec.Body.String())
	}
	var submitted struct {
		Exchange domain.ExchangeRequest   `json:"exchange"`
		History  []domain.ExchangeRequest `json:"history"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if submitted.Exchange.Details[0].ProductNewID != "vt-trang-m" {
		t.Fatalf("unexpected resolution: %+v", submitted.Exchange.Details[0])
	}
	if len(submitted.History) != 1 {
		t.Fatalf("expected history of 1, got %d", len(submitted.History))
	}

	// Customers cannot touch the status endpoint.
	statusPath := fmt.Sprintf("/api/v1/exchanges/%s/status", submitted.Exchange.ID)
	rec = doJSON(handler, http.MethodPatch, statusPath, customerToken, map[string]string{"status": "approved"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rec.Code)
	}

	rec = doJSON(handler, http.MethodPatch, statusPath, adminToken, map[string]string{"status": "approved"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve failed: %d (%s)", rec.Code, rec.Body.String())
	}

	// approved -> completed skips in_transit.
	rec = doJSON(handler, http.MethodPatch, statusPath, adminToken, map[string]string{"status": "completed"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for invalid transition, got %d", rec.Code)
	}
}

func TestExchangeDraftForShippingOrderConflicts(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginAs(t, handler, "linh", "customer123")

	rec := doJSON(handler, http.MethodGet, "/api/v1/orders/order-1002/exchange-draft", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for non-completed order, got %d", rec.Code)
	}
}

func TestInvalidExchangeSubmissionUnprocessable(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginAs(t, handler, "linh", "customer123")

	rec := doJSON(handler, http.MethodPost, "/api/v1/exchanges", token, map[string]any{
		"order_id": "order-1001",
		"details": []map[string]any{
			// Trắng/S does not exist for p-aothun.
			{"product_old_detail_id": "vt-den-m", "color_id": "c-trang", "size_id": "s-s", "quantity": 1},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
	}
}
