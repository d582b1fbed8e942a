package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"printstore/internal/domain"
	"printstore/internal/logging"
	"printstore/internal/pricing"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *logging.Logger) Repository {
	if logger == nil {
		logger = logging.Nop()
	}
	return &postgresRepo{pool: pool, logger: logger}
}

const productColumns = `id::text, key, name, description, base_price::float8, currency, image_url, created_at`

func scanProduct(row pgx.Row, p *domain.Product) error {
	return row.Scan(&p.ID, &p.Key, &p.Name, &p.Description, &p.BasePrice, &p.Currency, &p.ImageURL, &p.CreatedAt)
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC, key ASC`)
	if err != nil {
		r.logger.Error(ctx, "product repo: list", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error(ctx, "product repo: list rows", err)
		return nil, err
	}

	ids := make([]string, len(result))
	for i := range result {
		ids[i] = result[i].ID
	}
	tiers, err := r.tiersFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].BulkTiers = tiers[result[i].ID]
	}
	r.logger.Debug(r.logger.WithField(ctx, "count", len(result)), "product repo: list")
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id::text = $1`, id)
}

func (r *postgresRepo) GetByKey(ctx context.Context, key string) (*domain.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE key = $1`, key)
}

func (r *postgresRepo) getOne(ctx context.Context, q, arg string) (*domain.Product, error) {
	var p domain.Product
	if err := scanProduct(r.pool.QueryRow(ctx, q, arg), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug(r.logger.WithField(ctx, "lookup", arg), "product repo: not found")
			return nil, domain.ErrNotFound
		}
		r.logger.Error(r.logger.WithField(ctx, "lookup", arg), "product repo: get", err)
		return nil, err
	}
	tiers, err := r.tiersFor(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.BulkTiers = tiers[p.ID]
	return &p, nil
}

// Upsert writes the product by key and replaces its tiers in one transaction.
func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	tiers := append([]domain.BulkPriceTier(nil), product.BulkTiers...)
	pricing.SortTiers(tiers)
	if err := pricing.ValidateTiers(tiers); err != nil {
		return nil, fmt.Errorf("product %s: %w", product.Key, err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `
INSERT INTO products (id, key, name, description, base_price, currency, image_url)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
ON CONFLICT (key) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    base_price = EXCLUDED.base_price,
    currency = EXCLUDED.currency,
    image_url = EXCLUDED.image_url
RETURNING id::text, created_at
`
	res := product
	if err := tx.QueryRow(ctx, q,
		product.ID,
		product.Key,
		product.Name,
		product.Description,
		product.BasePrice,
		product.Currency,
		product.ImageURL,
	).Scan(&res.ID, &res.CreatedAt); err != nil {
		r.logger.Error(r.logger.WithField(ctx, "key", product.Key), "product repo: upsert", err)
		return nil, err
	}
	if product.ID != "" && res.ID != product.ID {
		return nil, fmt.Errorf("product repo: id mismatch for key=%s existing_id=%s import_id=%s", product.Key, res.ID, product.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bulk_price_tiers WHERE product_id = $1::uuid`, res.ID); err != nil {
		return nil, err
	}
	for _, tier := range tiers {
		if _, err := tx.Exec(ctx, `
INSERT INTO bulk_price_tiers (product_id, min_quantity, max_quantity, unit_price)
VALUES ($1::uuid, $2, $3, $4)
`, res.ID, tier.MinQuantity, tier.MaxQuantity, tier.UnitPrice); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	res.BulkTiers = tiers
	r.logger.Debug(r.logger.WithField(ctx, "key", res.Key), "product repo: upserted")
	return &res, nil
}

// PriceInfo returns the pricing contract for every id that exists. Unknown ids
// are simply absent from the map.
func (r *postgresRepo) PriceInfo(ctx context.Context, ids []string) (map[string]domain.PriceInfo, error) {
	out := make(map[string]domain.PriceInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id::text, base_price::float8 FROM products WHERE id::text = ANY($1)`, ids)
	if err != nil {
		r.logger.Error(ctx, "product repo: price info", err)
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var info domain.PriceInfo
		if err := rows.Scan(&info.ProductID, &info.BasePrice); err != nil {
			return nil, err
		}
		out[info.ProductID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tiers, err := r.tiersFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, info := range out {
		info.BulkTiers = tiers[id]
		out[id] = info
	}
	return out, nil
}

func (r *postgresRepo) tiersFor(ctx context.Context, ids []string) (map[string][]domain.BulkPriceTier, error) {
	out := make(map[string][]domain.BulkPriceTier)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
SELECT product_id::text, min_quantity, max_quantity, unit_price::float8
FROM bulk_price_tiers
WHERE product_id::text = ANY($1)
ORDER BY product_id, min_quantity
`, ids)
	if err != nil {
		r.logger.Error(ctx, "product repo: tiers", err)
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var productID string
		var tier domain.BulkPriceTier
		if err := rows.Scan(&productID, &tier.MinQuantity, &tier.MaxQuantity, &tier.UnitPrice); err != nil {
			return nil, err
		}
		out[productID] = append(out[productID], tier)
	}
	return out, rows.Err()
}
