// Package session はユーザーごとの会話状態（カート・配送情報の下書き）を保持する。
package session

import (
	"context"

	"github.com/hitoshi/shoppybot/internal/model"
)

// TimeChoice は受け取り時刻の指定方法。
type TimeChoice string

const (
	// TimeNow はすぐに受け取る。
	TimeNow TimeChoice = "now"
	// TimeScheduled は時刻を指定して受け取る。
	TimeScheduled TimeChoice = "scheduled"
)

// GeoPoint は位置情報。
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ShippingDraft はチェックアウト中に集めた配送情報の下書き。
// 注文確定またはキャンセルで空に戻る。
type ShippingDraft struct {
	Method                  model.ShippingMethod `json:"method,omitempty"`
	PickupLocation          string               `json:"pickup_location,omitempty"`
	Address                 string               `json:"address,omitempty"`
	Geo                     *GeoPoint            `json:"geo,omitempty"`
	Time                    TimeChoice           `json:"time,omitempty"`
	TimeText                string               `json:"time_text,omitempty"`
	PhoneNumber             string               `json:"phone_number,omitempty"`
	PhotoQuestion           string               `json:"photo_question,omitempty"`
	IdentificationPhotoRef  string               `json:"identification_photo_ref,omitempty"`
	IdentificationStage2Ref string               `json:"identification_stage2_ref,omitempty"`
	IsVIP                   bool                 `json:"is_vip,omitempty"`
}

// IsEmpty は下書きに何も記録されていないかを返す。
func (d ShippingDraft) IsEmpty() bool {
	return d == ShippingDraft{}
}

// ShippingTime は注文に記録する受け取り時刻の表記を返す。
func (d ShippingDraft) ShippingTime() string {
	if d.Time == TimeScheduled {
		return d.TimeText
	}
	return string(d.Time)
}

// Session はユーザー1人分の会話状態。
// Stateはチェックアウトの状態名で、空文字列は初期状態を表す。
type Session struct {
	State string         `json:"state,omitempty"`
	Cart  map[string]int `json:"cart"`
	Draft ShippingDraft  `json:"draft"`
}

// New は空のセッションを生成する。
func New() *Session {
	return &Session{Cart: map[string]int{}}
}

// Normalize は欠落したカートを空のマップに置き換える。
func (s *Session) Normalize() {
	if s.Cart == nil {
		s.Cart = map[string]int{}
	}
}

// ClearDraft は配送情報の下書きだけを破棄する。カートは保持される。
func (s *Session) ClearDraft() {
	s.Draft = ShippingDraft{}
}

// Clear はカートと下書きの両方を破棄する。
func (s *Session) Clear() {
	s.Cart = map[string]int{}
	s.Draft = ShippingDraft{}
}

// Store はセッションの永続化インターフェース。
// 同一ユーザーへの書き込みは後勝ちとなる。
type Store interface {
	// Get はユーザーのセッションを返す。存在しない場合は空のセッションを返す。
	Get(ctx context.Context, userID int64) (*Session, error)
	// Put はユーザーのセッションを保存する。
	Put(ctx context.Context, userID int64, s *Session) error
}
