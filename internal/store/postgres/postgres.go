package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tiemao/storefront/internal/domain"
	"tiemao/storefront/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListVariantsByProduct(ctx context.Context, productID string) ([]domain.Variant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, color_id, color_name, size_id, size_name,
		       quantity_in_stock, original_price, has_discount, final_price, COALESCE(image_url, '')
		FROM product_variants
		WHERE product_id = $1
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variants := make([]domain.Variant, 0, 16)
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.ColorID, &v.ColorName, &v.SizeID, &v.SizeName,
			&v.QuantityInStock, &v.OriginalPrice, &v.HasDiscount, &v.FinalPrice, &v.ImageURL); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, store.ErrNotFound
	}

	return variants, nil
}

func (s *Store) GetVariant(ctx context.Context, variantID string) (*domain.Variant, error) {
	var v domain.Variant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, color_id, color_name, size_id, size_name,
		       quantity_in_stock, original_price, has_discount, final_price, COALESCE(image_url, '')
		FROM product_variants
		WHERE id = $1
	`, variantID).Scan(&v.ID, &v.ProductID, &v.ColorID, &v.ColorName, &v.SizeID, &v.SizeName,
		&v.QuantityInStock, &v.OriginalPrice, &v.HasDiscount, &v.FinalPrice, &v.ImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	var discountAmount sql.NullInt64
	var totalAfterDiscount sql.NullInt64
	var discountCode sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, shipping, total_price,
		       discount_code, discount_amount, total_after_discount, created_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&order.ID, &order.UserID, &order.Status, &order.Shipping, &order.TotalPrice,
		&discountCode, &discountAmount, &totalAfterDiscount, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if discountAmount.Valid || totalAfterDiscount.Valid {
		d := &domain.Discount{Code: discountCode.String, DiscountAmount: discountAmount.Int64}
		if totalAfterDiscount.Valid {
			total := totalAfterDiscount.Int64
			d.TotalAfterDiscount = &total
		}
		order.Discount = d
	}

	lines, err := s.orderLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	return &order, nil
}

func (s *Store) orderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT variant_id, product_id, product_name, color_name, size_name, quantity, unit_price
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0, 8)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.PurchasedVariantID, &line.ProductID, &line.ProductName,
			&line.ColorName, &line.SizeName, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (s *Store) CreateExchangeRequest(ctx context.Context, req domain.ExchangeRequest) (*domain.ExchangeRequest, error) {
	if req.ID == "" || req.OrderID == "" || len(req.Details) == 0 {
		return nil, store.ErrInvalidInput
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exchange_requests (id, order_id, user_id, note, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, req.ID, req.OrderID, req.UserID, req.Note, req.Status, req.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	for i, detail := range req.Details {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO exchange_details
				(request_id, position, product_old_detail_id, product_old_color_name, product_old_size_name,
				 product_new_id, color_id, size_id, quantity, max_quantity, reason,
				 product_id, product_name, product_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`, req.ID, i, detail.ProductOldDetailID, detail.ProductOldColorName, detail.ProductOldSizeName,
			detail.ProductNewID, detail.ColorID, detail.SizeID, detail.Quantity, detail.MaxQuantity, detail.Reason,
			detail.ProductID, detail.ProductName, detail.ProductPrice)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := req
	return &created, nil
}

func (s *Store) GetExchangeRequest(ctx context.Context, id string) (*domain.ExchangeRequest, error) {
	var req domain.ExchangeRequest
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, user_id, note, status, created_at
		FROM exchange_requests
		WHERE id = $1
	`, id).Scan(&req.ID, &req.OrderID, &req.UserID, &req.Note, &req.Status, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	details, err := s.exchangeDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Details = details

	return &req, nil
}

func (s *Store) exchangeDetails(ctx context.Context, requestID string) ([]domain.ExchangeDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_old_detail_id, product_old_color_name, product_old_size_name,
		       product_new_id, color_id, size_id, quantity, max_quantity, reason,
		       product_id, product_name, product_price
		FROM exchange_details
		WHERE request_id = $1
		ORDER BY position
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]domain.ExchangeDetail, 0, 4)
	for rows.Next() {
		var d domain.ExchangeDetail
		if err := rows.Scan(&d.ProductOldDetailID, &d.ProductOldColorName, &d.ProductOldSizeName,
			&d.ProductNewID, &d.ColorID, &d.SizeID, &d.Quantity, &d.MaxQuantity, &d.Reason,
			&d.ProductID, &d.ProductName, &d.ProductPrice); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

func (s *Store) ListExchangeRequestsByUser(ctx context.Context, userID string) ([]domain.ExchangeRequest, error) {
	return s.listExchangeRequests(ctx, "user_id", userID)
}

func (s *Store) ListExchangeRequestsByOrder(ctx context.Context, orderID string) ([]domain.ExchangeRequest, error) {
	return s.listExchangeRequests(ctx, "order_id", orderID)
}

func (s *Store) listExchangeRequests(ctx context.Context, column string, value string) ([]domain.ExchangeRequest, error) {
	// column is one of two compile-time constants, never user input.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM exchange_requests
		WHERE `+column+` = $1
		ORDER BY created_at
	`, value)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	requests := make([]domain.ExchangeRequest, 0, len(ids))
	for _, id := range ids {
		req, err := s.GetExchangeRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, nil
}

func (s *Store) UpdateExchangeStatus(ctx context.Context, id string, status string) (*domain.ExchangeRequest, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exchange_requests
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetExchangeRequest(ctx, id)
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "customer"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
