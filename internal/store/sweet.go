package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sweetshop/apiserver/types"
)

const sweetColumns = `id, name, category, price_minor, quantity, description, created_at, updated_at`

// SweetRepository handles persistence for sweets.
type SweetRepository struct {
	db *sql.DB
}

func NewSweetRepository(db *sql.DB) *SweetRepository {
	return &SweetRepository{db: db}
}

func (r *SweetRepository) List(ctx context.Context) ([]types.Sweet, error) {
	return r.Search(ctx, types.SweetFilter{})
}

// Search returns sweets matching every set filter, newest first.
func (r *SweetRepository) Search(ctx context.Context, filter types.SweetFilter) ([]types.Sweet, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Name != "" {
		args = append(args, "%"+escapeLike(filter.Name)+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, int64(*filter.MinPrice))
		conditions = append(conditions, fmt.Sprintf("price_minor >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, int64(*filter.MaxPrice))
		conditions = append(conditions, fmt.Sprintf("price_minor <= $%d", len(args)))
	}

	query := `SELECT ` + sweetColumns + ` FROM sweets`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sweets := make([]types.Sweet, 0)
	for rows.Next() {
		sweet, err := scanSweet(rows)
		if err != nil {
			return nil, err
		}
		sweets = append(sweets, sweet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sweets, nil
}

func (r *SweetRepository) Get(ctx context.Context, id string) (types.Sweet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Sweet{}, ErrNotFound
	}

	query := `SELECT ` + sweetColumns + ` FROM sweets WHERE id = $1`
	return scanSweetRow(r.db.QueryRowContext(ctx, query, id))
}

func (r *SweetRepository) Create(ctx context.Context, sweet types.Sweet) (types.Sweet, error) {
	now := time.Now().UTC()
	sweet.ID = uuid.NewString()
	sweet.CreatedAt = now
	sweet.UpdatedAt = now

	const query = `
		INSERT INTO sweets (id, name, category, price_minor, quantity, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		sweet.ID,
		sweet.Name,
		sweet.Category,
		int64(sweet.Price),
		sweet.Quantity,
		sweet.Description,
		sweet.CreatedAt,
		sweet.UpdatedAt,
	); err != nil {
		return types.Sweet{}, err
	}
	return sweet, nil
}

// Update applies only the non-nil changes in a single statement.
func (r *SweetRepository) Update(ctx context.Context, id string, changes types.SweetChanges) (types.Sweet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Sweet{}, ErrNotFound
	}

	var price any
	if changes.Price != nil {
		price = int64(*changes.Price)
	}

	query := `
		UPDATE sweets
		SET name = COALESCE($1, name),
			category = COALESCE($2, category),
			price_minor = COALESCE($3, price_minor),
			quantity = COALESCE($4, quantity),
			description = COALESCE($5, description),
			updated_at = $6
		WHERE id = $7
		RETURNING ` + sweetColumns
	return scanSweetRow(r.db.QueryRowContext(
		ctx,
		query,
		changes.Name,
		changes.Category,
		price,
		changes.Quantity,
		changes.Description,
		time.Now().UTC(),
		id,
	))
}

func (r *SweetRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	const query = `DELETE FROM sweets WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock removes n units in one conditional update, so concurrent
// callers can never drive quantity below zero.
func (r *SweetRepository) DecrementStock(ctx context.Context, id string, n int) (types.Sweet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Sweet{}, ErrNotFound
	}

	query := `
		UPDATE sweets
		SET quantity = quantity - $1,
			updated_at = $2
		WHERE id = $3 AND quantity >= $1
		RETURNING ` + sweetColumns
	sweet, err := scanSweetRow(r.db.QueryRowContext(ctx, query, n, time.Now().UTC(), id))
	if !errors.Is(err, ErrNotFound) {
		return sweet, err
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return types.Sweet{}, err
	}
	if exists {
		return types.Sweet{}, ErrInsufficientStock
	}
	return types.Sweet{}, ErrNotFound
}

func (r *SweetRepository) IncrementStock(ctx context.Context, id string, n int) (types.Sweet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Sweet{}, ErrNotFound
	}

	query := `
		UPDATE sweets
		SET quantity = quantity + $1,
			updated_at = $2
		WHERE id = $3 AND quantity <= $4 - $1
		RETURNING ` + sweetColumns
	sweet, err := scanSweetRow(r.db.QueryRowContext(ctx, query, n, time.Now().UTC(), id, types.MaxQuantity))
	if isOutOfRange(err) {
		return types.Sweet{}, ErrQuantityOverflow
	}
	if !errors.Is(err, ErrNotFound) {
		return sweet, err
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return types.Sweet{}, err
	}
	if exists {
		return types.Sweet{}, ErrQuantityOverflow
	}
	return types.Sweet{}, ErrNotFound
}

func (r *SweetRepository) exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sweets WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSweet(row rowScanner) (types.Sweet, error) {
	var (
		sweet types.Sweet
		price int64
	)
	if err := row.Scan(
		&sweet.ID,
		&sweet.Name,
		&sweet.Category,
		&price,
		&sweet.Quantity,
		&sweet.Description,
		&sweet.CreatedAt,
		&sweet.UpdatedAt,
	); err != nil {
		return types.Sweet{}, err
	}
	sweet.Price = types.Price(price)
	return sweet, nil
}

func scanSweetRow(row *sql.Row) (types.Sweet, error) {
	sweet, err := scanSweet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Sweet{}, ErrNotFound
		}
		return types.Sweet{}, err
	}
	return sweet, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
