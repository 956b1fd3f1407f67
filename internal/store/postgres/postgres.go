package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

//go:embed seed.sql
var seedSQL string

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

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

// NewWithDB wraps an existing handle. The caller keeps ownership of pool
// settings.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Seed loads the demo catalog, skipping rows that already exist.
func (s *Store) Seed(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, seedSQL); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	return nil
}

const itemColumns = `
	i.id, i.name, COALESCE(i.description, ''),
	COALESCE(i.category_id::text, ''), COALESCE(i.subcategory_id::text, ''),
	i.tax_applicable, i.tax_percentage, i.is_active, i.is_bookable`

type itemRow struct {
	item       domain.Item
	applicable sql.NullBool
	percentage decimal.NullDecimal
}

func (r *itemRow) dest() []any {
	return []any{
		&r.item.ID, &r.item.Name, &r.item.Description,
		&r.item.CategoryID, &r.item.SubcategoryID,
		&r.applicable, &r.percentage, &r.item.IsActive, &r.item.IsBookable,
	}
}

func (r *itemRow) value() domain.Item {
	out := r.item
	out.Tax = taxFromColumns(r.applicable, r.percentage)
	return out
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	var row itemRow
	err := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1`, id).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	item := row.value()
	return &item, nil
}

// nodeRow scans a LEFT JOINed category or subcategory.
type nodeRow struct {
	id         sql.NullString
	parentID   sql.NullString
	name       sql.NullString
	applicable sql.NullBool
	percentage decimal.NullDecimal
	active     sql.NullBool
}

func (s *Store) GetItemWithParents(ctx context.Context, id string) (*domain.ItemWithParents, error) {
	var (
		row                 itemRow
		category, sub, root nodeRow
	)
	dest := row.dest()
	dest = append(dest,
		&category.id, &category.name, &category.applicable, &category.percentage, &category.active,
		&sub.id, &sub.parentID, &sub.name, &sub.applicable, &sub.percentage, &sub.active,
		&root.id, &root.name, &root.applicable, &root.percentage, &root.active,
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`,
			c.id::text, c.name, c.tax_applicable, c.tax_percentage, c.is_active,
			sc.id::text, sc.category_id::text, sc.name, sc.tax_applicable, sc.tax_percentage, sc.is_active,
			pc.id::text, pc.name, pc.tax_applicable, pc.tax_percentage, pc.is_active
		FROM items i
		LEFT JOIN categories c ON c.id = i.category_id
		LEFT JOIN subcategories sc ON sc.id = i.subcategory_id
		LEFT JOIN categories pc ON pc.id = sc.category_id
		WHERE i.id = $1
	`, id).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	out := &domain.ItemWithParents{Item: row.value()}
	out.Category = category.category()
	out.SubcategoryCategory = root.category()
	if sub.id.Valid {
		out.Subcategory = &domain.Subcategory{
			ID:         sub.id.String,
			CategoryID: sub.parentID.String,
			Name:       sub.name.String,
			Tax:        taxFromColumns(sub.applicable, sub.percentage),
			IsActive:   sub.active.Bool,
		}
	}
	return out, nil
}

func (n nodeRow) category() *domain.Category {
	if !n.id.Valid {
		return nil
	}
	return &domain.Category{
		ID:       n.id.String,
		Name:     n.name.String,
		Tax:      taxFromColumns(n.applicable, n.percentage),
		IsActive: n.active.Bool,
	}
}

func (s *Store) GetPricingConfig(ctx context.Context, itemID string) (*domain.PricingConfig, error) {
	var (
		cfg     domain.PricingConfig
		typ     string
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT item_id::text, pricing_type::text, configuration, updated_at
		FROM pricing
		WHERE item_id = $1
	`, itemID).Scan(&cfg.ItemID, &typ, &payload, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	cfg.Type = domain.PricingType(typ)
	cfg.Configuration = payload
	return &cfg, nil
}

func (s *Store) UpsertPricingConfig(ctx context.Context, cfg domain.PricingConfig) (*domain.PricingConfig, error) {
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pricing (item_id, pricing_type, configuration, created_at, updated_at)
		VALUES ($1, $2::pricing_type, $3::jsonb, $4, $4)
		ON CONFLICT (item_id)
		DO UPDATE SET pricing_type = EXCLUDED.pricing_type,
			configuration = EXCLUDED.configuration,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`, cfg.ItemID, string(cfg.Type), string(cfg.Configuration), cfg.UpdatedAt).Scan(&cfg.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidText(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

const windowColumns = `
	id::text, item_id::text, day_of_week,
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	is_active, created_at`

func scanWindow(scan func(dest ...any) error) (domain.AvailabilityWindow, error) {
	var w domain.AvailabilityWindow
	err := scan(&w.ID, &w.ItemID, &w.DayOfWeek, &w.StartTime, &w.EndTime, &w.IsActive, &w.CreatedAt)
	return w, err
}

func (s *Store) ListAvailabilityWindows(ctx context.Context, itemID string, dayOfWeek int) ([]domain.AvailabilityWindow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+windowColumns+`
		FROM availability
		WHERE item_id = $1 AND day_of_week = $2 AND is_active = true
		ORDER BY start_time
	`, itemID, dayOfWeek)
	if err != nil {
		if isInvalidText(err) {
			return []domain.AvailabilityWindow{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	windows := make([]domain.AvailabilityWindow, 0, 4)
	for rows.Next() {
		w, err := scanWindow(rows.Scan)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return windows, nil
}

// CreateAvailabilityWindow locks the item row so two concurrent writers cannot
// both pass the overlap check.
func (s *Store) CreateAvailabilityWindow(ctx context.Context, window domain.AvailabilityWindow) (*domain.AvailabilityWindow, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockItem(ctx, tx, window.ItemID); err != nil {
		return nil, err
	}

	if window.IsActive {
		var overlapping bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM availability
				WHERE item_id = $1 AND day_of_week = $2 AND is_active = true
					AND start_time < $4::time AND end_time > $3::time
			)
		`, window.ItemID, window.DayOfWeek, window.StartTime, window.EndTime).Scan(&overlapping)
		if err != nil {
			return nil, err
		}
		if overlapping {
			return nil, store.ErrWindowOverlap
		}
	}

	created, err := scanWindow(tx.QueryRowContext(ctx, `
		INSERT INTO availability (id, item_id, day_of_week, start_time, end_time, is_active)
		VALUES ($1, $2, $3, $4::time, $5::time, $6)
		RETURNING `+windowColumns,
		window.ID, window.ItemID, window.DayOfWeek, window.StartTime, window.EndTime, window.IsActive,
	).Scan)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &created, nil
}

func lockItem(ctx context.Context, tx *sql.Tx, itemID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id::text FROM items WHERE id = $1 FOR UPDATE`, itemID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("lock item %s: %w", itemID, err)
	}
	return nil
}

func taxFromColumns(applicable sql.NullBool, percentage decimal.NullDecimal) domain.TaxSetting {
	var (
		a *bool
		p *decimal.Decimal
	)
	if applicable.Valid {
		a = &applicable.Bool
	}
	if percentage.Valid {
		p = &percentage.Decimal
	}
	return domain.TaxSettingFromColumns(a, p)
}

func isBookingConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" || pgErr.Code == "23P01"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// isInvalidText reports a malformed uuid literal, which callers treat as a
// lookup miss.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22P02"
	}
	return false
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
