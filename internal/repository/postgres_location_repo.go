package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shoppybot/internal/model"
)

// PostgresLocationRepo はPostgreSQLを使用した受け取り場所リポジトリ。
type PostgresLocationRepo struct {
	db *sql.DB
}

// NewPostgresLocationRepo はPostgresLocationRepoを生成する。
func NewPostgresLocationRepo(db *sql.DB) *PostgresLocationRepo {
	return &PostgresLocationRepo{db: db}
}

// FindByID は指定IDの場所を取得する。見つからない場合はnilを返す。
func (r *PostgresLocationRepo) FindByID(ctx context.Context, id string) (*model.Location, error) {
	return r.findOne(ctx, `SELECT id, title FROM locations WHERE id = $1`, id)
}

// FindByTitle はタイトルで場所を検索する。見つからない場合はnilを返す。
func (r *PostgresLocationRepo) FindByTitle(ctx context.Context, title string) (*model.Location, error) {
	return r.findOne(ctx, `SELECT id, title FROM locations WHERE title = $1`, title)
}

func (r *PostgresLocationRepo) findOne(ctx context.Context, query string, arg any) (*model.Location, error) {
	loc := &model.Location{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&loc.ID, &loc.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find location: %w", err)
	}
	return loc, nil
}

// List は全ての場所をタイトル順に返す。
func (r *PostgresLocationRepo) List(ctx context.Context) ([]*model.Location, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title FROM locations ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*model.Location
	for rows.Next() {
		loc := &model.Location{}
		if err := rows.Scan(&loc.ID, &loc.Title); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return locations, nil
}

// compile-time interface check
var _ LocationRepository = (*PostgresLocationRepo)(nil)
