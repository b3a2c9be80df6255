package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shoppybot/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// FindByID は指定IDの注文を明細付きで取得する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	order := &model.Order{}
	var courierID, locationID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, courier_id, location_id, shipping_method, shipping_time, confirmed, created_at
		 FROM orders WHERE id = $1`,
		id,
	).Scan(&order.ID, &order.UserID, &courierID, &locationID,
		&order.ShippingMethod, &order.ShippingTime, &order.Confirmed, &order.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}
	order.CourierID = nullStringPtr(courierID)
	order.LocationID = nullStringPtr(locationID)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, count, total_price
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		var productID sql.NullString
		if err := rows.Scan(&item.ID, &item.OrderID, &productID, &item.Count, &item.TotalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.ProductID = nullStringValue(productID)
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return order, nil
}

// CreateWithItems は注文と全明細を同一トランザクションで作成する。
// IDが未設定の注文・明細にはUUIDを採番し、作成日時をorderに反映する。
func (r *PostgresOrderRepo) CreateWithItems(ctx context.Context, order *model.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 注文を作成
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (id, user_id, courier_id, location_id, shipping_method, shipping_time, confirmed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		order.ID, order.UserID, ptrNullString(order.CourierID), ptrNullString(order.LocationID),
		order.ShippingMethod, order.ShippingTime, order.Confirmed,
	).Scan(&order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	// 明細を作成
	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.OrderID = order.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, count, total_price)
			 VALUES ($1, $2, $3, $4, $5)`,
			item.ID, item.OrderID, nullString(item.ProductID), item.Count, item.TotalPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// AssignCourier は注文の配達員を設定する。courierIDがnilの場合は担当を解除する。
func (r *PostgresOrderRepo) AssignCourier(ctx context.Context, orderID string, courierID *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET courier_id = $2, confirmed = false WHERE id = $1`,
		orderID, ptrNullString(courierID),
	)
	if err != nil {
		return fmt.Errorf("failed to assign courier: %w", err)
	}
	return requireAffected(result, "order", orderID)
}

// SetConfirmed は注文の確認済みフラグを更新する。
func (r *PostgresOrderRepo) SetConfirmed(ctx context.Context, orderID string, confirmed bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET confirmed = $2 WHERE id = $1`,
		orderID, confirmed,
	)
	if err != nil {
		return fmt.Errorf("failed to update order confirmation: %w", err)
	}
	return requireAffected(result, "order", orderID)
}

// ListAwaitingCourier は配達員が決まらず確認もされていない注文を古い順に返す。
// 作成からwindow以内で、作成または前回の再通知からidle以上経過したものが対象。
// 明細は読み込まない。
func (r *PostgresOrderRepo) ListAwaitingCourier(ctx context.Context, idle, window time.Duration) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, location_id, shipping_method, shipping_time, created_at
		 FROM orders
		 WHERE courier_id IS NULL AND NOT confirmed
		   AND created_at > now() - $2::interval
		   AND COALESCE(reminded_at, created_at) <= now() - $1::interval
		 ORDER BY created_at`,
		interval(idle), interval(window),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders awaiting courier: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order := &model.Order{}
		var locationID sql.NullString
		if err := rows.Scan(&order.ID, &order.UserID, &locationID,
			&order.ShippingMethod, &order.ShippingTime, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.LocationID = nullStringPtr(locationID)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// MarkReminded は注文の再通知時刻を現在時刻にする。
func (r *PostgresOrderRepo) MarkReminded(ctx context.Context, orderID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET reminded_at = now() WHERE id = $1`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark order reminded: %w", err)
	}
	return requireAffected(result, "order", orderID)
}

// interval はPostgreSQLのinterval型に渡す秒数表現を返す。
func interval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d/time.Second))
}

func requireAffected(result sql.Result, kind, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
