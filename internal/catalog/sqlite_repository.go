package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/vali024/valix-shop/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to ":memory:" is a separate database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
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

func (r *Repository) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	query := `
		SELECT id, name, description, image, category, status, updated_at
		FROM items
		WHERE id = ?
	`

	item := &domain.Item{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.Image,
		&item.Category,
		&item.Status,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item: %w", err)
	}

	if err := r.loadVariants(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Repository) ListItems(ctx context.Context) ([]*domain.Item, error) {
	query := `
		SELECT id, name, description, image, category, status, updated_at
		FROM items
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item := &domain.Item{}
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Description,
			&item.Image,
			&item.Category,
			&item.Status,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, item := range items {
		if err := r.loadVariants(ctx, item); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *Repository) loadVariants(ctx context.Context, item *domain.Item) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT variant, price, market_price, enabled FROM item_variants WHERE item_id = ?`, item.ID)
	if err != nil {
		return fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	item.Prices = make(map[domain.Variant]decimal.Decimal)
	item.MarketPrices = make(map[domain.Variant]decimal.Decimal)
	item.QuantityOptions = make(map[domain.Variant]bool)

	for rows.Next() {
		var (
			v       domain.Variant
			price   decimal.Decimal
			market  decimal.NullDecimal
			enabled bool
		)
		if err := rows.Scan(&v, &price, &market, &enabled); err != nil {
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		item.Prices[v] = price
		if market.Valid {
			item.MarketPrices[v] = market.Decimal
		}
		item.QuantityOptions[v] = enabled
	}
	return rows.Err()
}

// UpsertItem replaces an item and all of its variants.
func (r *Repository) UpsertItem(ctx context.Context, item *domain.Item) error {
	if item.ID == "" || item.Name == "" {
		return fmt.Errorf("item id and name are required: %w", domain.ErrInvalidInput)
	}
	if !item.Status.Valid() {
		return fmt.Errorf("item status %q: %w", item.Status, domain.ErrInvalidInput)
	}
	if len(item.Prices) == 0 {
		return fmt.Errorf("item %s has no prices: %w", item.ID, domain.ErrInvalidInput)
	}
	for v, price := range item.Prices {
		if !v.Valid() {
			return fmt.Errorf("variant %q: %w", v, domain.ErrInvalidInput)
		}
		if err := checkMoney(price); err != nil {
			return fmt.Errorf("price %s: %w", v, err)
		}
	}
	for v, mp := range item.MarketPrices {
		if err := checkMoney(mp); err != nil {
			return fmt.Errorf("market price %s: %w", v, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, name, description, image, category, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			image = excluded.image,
			category = excluded.category,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		item.ID, item.Name, item.Description, item.Image, item.Category, item.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_variants WHERE item_id = ?`, item.ID); err != nil {
		return fmt.Errorf("delete variants: %w", err)
	}

	for v, price := range item.Prices {
		var market any
		if mp, ok := item.MarketPrices[v]; ok {
			market = mp.String()
		}
		enabled, ok := item.QuantityOptions[v]
		if !ok {
			enabled = v == domain.DefaultVariant
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO item_variants (item_id, variant, price, market_price, enabled) VALUES (?, ?, ?, ?, ?)`,
			item.ID, v, price.String(), market, enabled)
		if err != nil {
			return fmt.Errorf("insert variant %s: %w", v, err)
		}
	}

	return tx.Commit()
}

// checkMoney accepts non-negative amounts with at most two decimal places,
// the precision orders store.
func checkMoney(d decimal.Decimal) error {
	if d.IsNegative() || !d.Equal(d.Round(2)) {
		return fmt.Errorf("%s is not a valid amount: %w", d, domain.ErrInvalidInput)
	}
	return nil
}

// DeleteItem removes an item and its variants.
func (r *Repository) DeleteItem(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_variants WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("delete variants: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return tx.Commit()
}

// SetStatus changes the stock status of an item.
func (r *Repository) SetStatus(ctx context.Context, id string, status domain.StockStatus) error {
	if !status.Valid() {
		return fmt.Errorf("item status %q: %w", status, domain.ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update item status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
