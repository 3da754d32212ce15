package orderstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vali024/valix-shop/internal/domain"
)

const orderColumns = `id, user_id, items, subtotal, sgst, cgst, delivery_fee, discount, savings, amount,
	promo_code, address, payment_method, payment_status, transaction_id, gateway_order_id,
	status, idempotency_key, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	sslMode := cred.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName,
		sslMode)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)

	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.Address)
	if err != nil {
		return fmt.Errorf("failed to marshal order address: %w", err)
	}

	var idemKey sql.NullString
	if order.IdempotencyKey != "" {
		idemKey = sql.NullString{String: order.IdempotencyKey, Valid: true}
	}

	query := `INSERT INTO orders (id, user_id, items, subtotal, sgst, cgst, delivery_fee, discount, savings, amount,
	              promo_code, address, payment_method, payment_status, transaction_id, gateway_order_id,
	              status, idempotency_key, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
	          RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		order.ID,
		order.UserID,
		itemsJSON,
		order.Subtotal,
		order.SGST,
		order.CGST,
		order.DeliveryFee,
		order.Discount,
		order.Savings,
		order.Amount,
		order.PromoCode,
		addressJSON,
		order.Payment.Method,
		order.Payment.Status,
		order.Payment.TransactionID,
		order.Payment.GatewayOrderID,
		order.Status,
		idemKey,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND idempotency_key = $2`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by idempotency key: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return r.checkConditional(ctx, res, id, ErrStatusChanged)
}

func (r *PostgresRepository) UpdatePayment(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, p domain.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $3, payment_status = $4, transaction_id = $5, gateway_order_id = $6, updated_at = NOW()
		 WHERE id = $1 AND status = $2`,
		id, from, to, p.Status, p.TransactionID, p.GatewayOrderID)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	return r.checkConditional(ctx, res, id, ErrStatusChanged)
}

func (r *PostgresRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM orders WHERE id = $1 AND status = $2`, id, domain.OrderStatusDelivered)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return r.checkConditional(ctx, res, id, domain.ErrOrderNotDeletable)
}

// checkConditional tells a missing row apart from a row whose condition did not hold.
func (r *PostgresRepository) checkConditional(ctx context.Context, res sql.Result, id uuid.UUID, conflict error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return conflict
}

func (r *PostgresRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, userID)
}

// ListOrders returns every order, newest first. An empty status matches all.
func (r *PostgresRepository) ListOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	if status == "" {
		return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	}
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC`, status)
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// ListCustomers groups orders by the email and phone of their delivery address.
// Name, city and zipcode come from the customer's latest order.
func (r *PostgresRepository) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	query := `
		SELECT
			address->>'email' AS email,
			address->>'phone' AS phone,
			(array_agg(trim(concat(address->>'first_name', ' ', address->>'last_name')) ORDER BY created_at DESC))[1],
			(array_agg(address->>'city' ORDER BY created_at DESC))[1],
			(array_agg(address->>'zipcode' ORDER BY created_at DESC))[1],
			COUNT(*),
			MIN(created_at),
			MAX(created_at)
		FROM orders
		GROUP BY address->>'email', address->>'phone'
		ORDER BY MAX(created_at) DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	customers := []domain.Customer{}
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(
			&c.Email,
			&c.Phone,
			&c.Name,
			&c.City,
			&c.Zipcode,
			&c.OrderCount,
			&c.FirstOrderDate,
			&c.LastOrderDate,
		); err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return customers, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order       domain.Order
		itemsJSON   []byte
		addressJSON []byte
		idemKey     sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&order.Subtotal,
		&order.SGST,
		&order.CGST,
		&order.DeliveryFee,
		&order.Discount,
		&order.Savings,
		&order.Amount,
		&order.PromoCode,
		&addressJSON,
		&order.Payment.Method,
		&order.Payment.Status,
		&order.Payment.TransactionID,
		&order.Payment.GatewayOrderID,
		&order.Status,
		&idemKey,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.IdempotencyKey = idemKey.String

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.Address); err != nil {
		return nil, fmt.Errorf("unmarshal order address: %w", err)
	}
	return &order, nil
}
