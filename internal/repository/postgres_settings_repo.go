package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/shoppybot/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用した店舗設定リポジトリ。
// 設定はbot_settingsテーブルの単一行にJSONBとして保存され、管理者がSQLで編集する。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// Load は保存済みの設定を既定値に重ねて返す。
// 行が存在しない場合は既定値を返す。
func (r *PostgresSettingsRepo) Load(ctx context.Context) (*model.Settings, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM bot_settings WHERE id = 1`,
	).Scan(&data)

	if err == sql.ErrNoRows {
		s := model.DefaultSettings()
		return &s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return decodeSettings(data)
}

// decodeSettings はJSONを既定値の上にデコードする。
// JSONに含まれないキーは既定値のまま残る。
func decodeSettings(data []byte) (*model.Settings, error) {
	s := model.DefaultSettings()
	if len(data) == 0 {
		return &s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
