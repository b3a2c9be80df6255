package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/shoppybot/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// FindByID は指定IDの商品を価格段付きで取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	product := &model.Product{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, is_active, image_ref FROM products WHERE id = $1`,
		id,
	).Scan(&product.ID, &product.Title, &product.IsActive, &product.ImageRef)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT count, price FROM product_prices WHERE product_id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list product prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier model.PriceTier
		if err := rows.Scan(&tier.Count, &tier.Price); err != nil {
			return nil, fmt.Errorf("failed to scan product price: %w", err)
		}
		product.Tiers = append(product.Tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product prices: %w", err)
	}
	product.SortTiers()

	return product, nil
}

// ListActive は販売中の商品を価格段付きでタイトル順に返す。
// 価格段が未定義の商品も含まれる。
func (r *PostgresProductRepo) ListActive(ctx context.Context) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.title, p.is_active, p.image_ref, pp.count, pp.price
		 FROM products p
		 LEFT JOIN product_prices pp ON pp.product_id = p.id
		 WHERE p.is_active = true
		 ORDER BY p.title ASC, p.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active products: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	var current *model.Product
	for rows.Next() {
		var (
			id, title, imageRef string
			isActive            bool
			count               sql.NullInt64
			price               decimal.NullDecimal
		)
		if err := rows.Scan(&id, &title, &isActive, &imageRef, &count, &price); err != nil {
			return nil, fmt.Errorf("failed to scan active product: %w", err)
		}

		// 同一商品の行は連続して返されるため、IDが変わったら新しい商品とする
		if current == nil || current.ID != id {
			current = &model.Product{ID: id, Title: title, IsActive: isActive, ImageRef: imageRef}
			products = append(products, current)
		}
		if count.Valid && price.Valid {
			current.Tiers = append(current.Tiers, model.PriceTier{Count: int(count.Int64), Price: price.Decimal})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active products: %w", err)
	}
	for _, p := range products {
		p.SortTiers()
	}

	return products, nil
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
