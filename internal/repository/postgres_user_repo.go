package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/shoppybot/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用した顧客リポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, chat_id, username, phone_number, created_at`

// FindByID は指定IDの顧客を取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// GetOrCreate はチャットIDに対応する顧客を返す。存在しない場合は作成する。
// chat_idの一意制約を使い、同時に呼ばれても顧客は1件だけ作成される。
func (r *PostgresUserRepo) GetOrCreate(ctx context.Context, chatID int64, username string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, chat_id, username)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (chat_id) DO UPDATE SET username = EXCLUDED.username
		 RETURNING `+userColumns,
		uuid.New().String(), chatID, username,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}
	return user, nil
}

// UpdatePhoneNumber は顧客の電話番号を更新する。
func (r *PostgresUserRepo) UpdatePhoneNumber(ctx context.Context, id, phoneNumber string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET phone_number = $2 WHERE id = $1`,
		id, nullString(phoneNumber),
	)
	if err != nil {
		return fmt.Errorf("failed to update phone number: %w", err)
	}
	return requireAffected(result, "user", id)
}

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var phone sql.NullString
	if err := row.Scan(&user.ID, &user.ChatID, &user.Username, &phone, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.PhoneNumber = nullStringValue(phone)
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
