// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/shoppybot/internal/model"
)

// ProductRepository は商品と価格段の永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を価格段付きで取得する。見つからない場合はnilを返す。
	// 価格段はCount昇順で返される。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// ListActive は販売中の商品を価格段付きでタイトル順に返す。
	ListActive(ctx context.Context) ([]*model.Product, error)
}

// LocationRepository は受け取り場所の永続化インターフェース。
type LocationRepository interface {
	// FindByID は指定IDの場所を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Location, error)

	// FindByTitle はタイトルで場所を検索する。見つからない場合はnilを返す。
	FindByTitle(ctx context.Context, title string) (*model.Location, error)

	// List は全ての場所をタイトル順に返す。
	List(ctx context.Context) ([]*model.Location, error)
}

// CourierRepository は配達員の永続化インターフェース。
type CourierRepository interface {
	// FindByID は指定IDの配達員を担当場所付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Courier, error)

	// FindByChatID はチャットIDで配達員を検索する。見つからない場合はnilを返す。
	FindByChatID(ctx context.Context, chatID int64) (*model.Courier, error)
}

// UserRepository は顧客の永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDの顧客を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)


	// GetOrCreate はチャットIDに対応する顧客を返す。存在しない場合は作成する。
	// 既存の顧客のユーザー名は最新の値に更新される。
	GetOrCreate(ctx context.Context, chatID int64, username string) (*model.User, error)

	// UpdatePhoneNumber は顧客の電話番号を更新する。
	UpdatePhoneNumber(ctx context.Context, id, phoneNumber string) error
}

// OrderRepository は注文の永続化インターフェース。
type OrderRepository interface {
	// FindByID は指定IDの注文を明細付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Order, error)

	// CreateWithItems は注文と全明細を同一トランザクションで作成する。
	// いずれかの明細の作成に失敗した場合、注文も作成されない。
	CreateWithItems(ctx context.Context, order *model.Order) error

	// AssignCourier は注文の配達員を設定する。courierIDがnilの場合は担当を解除する。
	// 担当が変わった場合、確認済みフラグは解除される。
	AssignCourier(ctx context.Context, orderID string, courierID *string) error

	// SetConfirmed は注文の確認済みフラグを更新する。
	SetConfirmed(ctx context.Context, orderID string, confirmed bool) error
}

// SettingsRepository は店舗設定の永続化インターフェース。
// 配達料・割引ルールや本人確認の要否はこの設定から読み出される。
type SettingsRepository interface {
	// Load は保存済みの設定を既定値に重ねて返す。
	Load(ctx context.Context) (*model.Settings, error)
}
