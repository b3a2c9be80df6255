// Package model はドメインモデルを定義する。
package model

import "time"

// User はボットを利用する顧客を表す。
// ChatIDはチャットプラットフォーム上の外部識別子。
type User struct {
	ID          string
	ChatID      int64
	Username    string
	PhoneNumber string
	CreatedAt   time.Time
}

// Courier は配達員を表す。
// 1人の配達員は1つ以上の受け取り場所を担当する。
type Courier struct {
	ID          string
	ChatID      int64
	Username    string
	LocationIDs []string
}

// Serves は配達員が指定された場所を担当しているかを返す。
func (c *Courier) Serves(locationID string) bool {
	for _, id := range c.LocationIDs {
		if id == locationID {
			return true
		}
	}
	return false
}

// Location は受け取り場所を表す。
type Location struct {
	ID    string
	Title string
}
