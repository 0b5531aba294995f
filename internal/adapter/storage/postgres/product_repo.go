package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const productColumns = `id, name, description, category, game_name, game_id, price, currency, stock,
	image, auto_delivery, delivery_time, status, created_at, updated_at`

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct {
	pool Pool
}

func NewProductRepo(pool Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.Category, p.GameName, p.GameID, p.Price, p.Currency, p.Stock,
		p.Image, p.AutoDelivery, p.DeliveryTime, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", mapPgError(err))
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.pool.QueryRow(ctx, query, id))
}

func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	query := `UPDATE products SET name = $1, description = $2, category = $3, game_name = $4, game_id = $5,
		price = $6, currency = $7, stock = $8, image = $9, auto_delivery = $10, delivery_time = $11,
		status = $12, updated_at = $13 WHERE id = $14`

	tag, err := r.pool.Exec(ctx, query,
		p.Name, p.Description, p.Category, p.GameName, p.GameID,
		p.Price, p.Currency, p.Stock, p.Image, p.AutoDelivery, p.DeliveryTime,
		p.Status, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", p.ID)
	}
	return nil
}

// List returns a page of products ordered by name.
func (r *ProductRepo) List(ctx context.Context, filter ports.ProductFilter) ([]domain.Product, int64, error) {
	var conditions []string
	var args []any

	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR game_name ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, total, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.GameName, &p.GameID, &p.Price, &p.Currency, &p.Stock,
		&p.Image, &p.AutoDelivery, &p.DeliveryTime, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}
