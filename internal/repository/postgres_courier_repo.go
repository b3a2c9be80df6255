package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shoppybot/internal/model"
)

// PostgresCourierRepo はPostgreSQLを使用した配達員リポジトリ。
type PostgresCourierRepo struct {
	db *sql.DB
}

// NewPostgresCourierRepo はPostgresCourierRepoを生成する。
func NewPostgresCourierRepo(db *sql.DB) *PostgresCourierRepo {
	return &PostgresCourierRepo{db: db}
}

// FindByID は指定IDの配達員を担当場所付きで取得する。見つからない場合はnilを返す。
func (r *PostgresCourierRepo) FindByID(ctx context.Context, id string) (*model.Courier, error) {
	return r.findOne(ctx, `SELECT id, chat_id, username FROM couriers WHERE id = $1`, id)
}

// FindByChatID はチャットIDで配達員を検索する。見つからない場合はnilを返す。
func (r *PostgresCourierRepo) FindByChatID(ctx context.Context, chatID int64) (*model.Courier, error) {
	return r.findOne(ctx, `SELECT id, chat_id, username FROM couriers WHERE chat_id = $1`, chatID)
}

func (r *PostgresCourierRepo) findOne(ctx context.Context, query string, arg any) (*model.Courier, error) {
	courier := &model.Courier{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&courier.ID, &courier.ChatID, &courier.Username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find courier: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT location_id FROM courier_locations WHERE courier_id = $1 ORDER BY location_id`,
		courier.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courier locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var locationID string
		if err := rows.Scan(&locationID); err != nil {
			return nil, fmt.Errorf("failed to scan courier location: %w", err)
		}
		courier.LocationIDs = append(courier.LocationIDs, locationID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courier locations: %w", err)
	}

	return courier, nil
}

// compile-time interface check
var _ CourierRepository = (*PostgresCourierRepo)(nil)
