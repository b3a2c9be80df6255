package checkout

import (
	"fmt"
	"slices"

	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/model"
	"github.com/hitoshi/shoppybot/internal/session"
)

// Env はTransitionの判定に使う値。イベントごとに最新の設定から組み立てる。
type Env struct {
	Settings     model.Settings
	CartNonEmpty bool
	Draft        session.ShippingDraft

	// Locations は選択可能な受け取り場所の名前。LocationPickupでのみ参照する。
	Locations []string

	// IsVIP は電話番号を受け取った時点の会員判定の結果。
	IsVIP bool

	// PhotoQuestion はIdentify1に入る際に下書きへ記録する質問。
	PhotoQuestion string
}

// Transition は現在の状態とイベントから次の状態と副作用を返す。
func Transition(state State, ev chat.Event, env Env) (State, []Effect) {
	if isCallbackEvent(ev) && state.IsCheckout() {
		return state, []Effect{Notice{Kind: NoticeCheckoutBusy}}
	}

	if b, ok := ev.(chat.Button); ok && b.Label == chat.LabelCancel && state.IsCheckout() {
		return StateInit, []Effect{ClearDraft{}, Notice{Kind: NoticeCancelled}, ShowMainMenu{}}
	}

	switch state {
	case StateInit:
		return onInit(ev, env)
	case StateShippingMethod:
		return onShippingMethod(ev, env)
	case StateLocationPickup:
		return onLocationPickup(ev, env)
	case StateLocationDelivery:
		return onLocationDelivery(ev, env)
	case StateShippingTime:
		return onShippingTime(ev, env)
	case StateShippingTimeText:
		return onShippingTimeText(ev, env)
	case StatePhoneNumber:
		return onPhoneNumber(ev, env)
	case StateIdentify1:
		return onIdentify1(ev, env)
	case StateIdentify2:
		return onIdentify2(ev, env)
	case StateConfirmation:
		return onConfirmation(ev, env)
	}
	return reject(state, ev)
}

func onInit(ev chat.Event, env Env) (State, []Effect) {
	if m, ok := ev.(chat.MenuAction); ok && m.Item == chat.MenuOrder {
		if !env.CartNonEmpty {
			return StateInit, []Effect{Notice{Kind: NoticeEmptyCart}}
		}
		return StateShippingMethod, []Effect{ClearDraft{}, Prompt{State: StateShippingMethod}}
	}
	return StateInit, []Effect{Rejected{Err: invalidInput(StateInit, ev)}}
}

func onShippingMethod(ev chat.Event, env Env) (State, []Effect) {
	switch label(ev) {
	case chat.LabelPickup:
		return withMethod(env, model.ShippingPickup)
	case chat.LabelDelivery:
		return withMethod(env, model.ShippingDelivery)
	}
	return reject(StateShippingMethod, ev)
}

func withMethod(env Env, method model.ShippingMethod) (State, []Effect) {
	draft := env.Draft
	draft.Method = method
	return enter(StateLocationPickup, draft)
}

func onLocationPickup(ev chat.Event, env Env) (State, []Effect) {
	if label(ev) == chat.LabelBack {
		return StateShippingMethod, []Effect{Prompt{State: StateShippingMethod}}
	}
	t, ok := ev.(chat.Text)
	if !ok || !slices.Contains(env.Locations, t.Text) {
		return reject(StateLocationPickup, ev)
	}

	draft := env.Draft
	draft.PickupLocation = t.Text
	if draft.Method == model.ShippingDelivery {
		return enter(StateLocationDelivery, draft)
	}
	return enter(StateShippingTime, draft)
}

func onLocationDelivery(ev chat.Event, env Env) (State, []Effect) {
	draft := env.Draft
	switch e := ev.(type) {
	case chat.Button:
		if e.Label == chat.LabelBack {
			return StateShippingMethod, []Effect{Prompt{State: StateShippingMethod}}
		}
	case chat.Text:
		draft.Address = e.Text
		draft.Geo = nil
		return enter(StateShippingTime, draft)
	case chat.Location:
		draft.Address = ""
		draft.Geo = &session.GeoPoint{Latitude: e.Latitude, Longitude: e.Longitude}
		return enter(StateShippingTime, draft)
	}
	return reject(StateLocationDelivery, ev)
}

func onShippingTime(ev chat.Event, env Env) (State, []Effect) {
	draft := env.Draft
	switch label(ev) {
	case chat.LabelBack:
		return StateShippingMethod, []Effect{Prompt{State: StateShippingMethod}}
	case chat.LabelNow:
		draft.Time = session.TimeNow
		draft.TimeText = ""
		next := afterShippingTime(env.Settings)
		if next == StateIdentify1 {
			draft = withQuestion(draft, env)
		}
		return enter(next, draft)
	case chat.LabelSetTime:
		draft.Time = session.TimeScheduled
		return enter(StateShippingTimeText, draft)
	}
	return reject(StateShippingTime, ev)
}

func onShippingTimeText(ev chat.Event, env Env) (State, []Effect) {
	if label(ev) == chat.LabelBack {
		return StateShippingTime, []Effect{Prompt{State: StateShippingTime}}
	}
	t, ok := ev.(chat.Text)
	if !ok {
		return reject(StateShippingTimeText, ev)
	}
	draft := env.Draft
	draft.TimeText = t.Text
	return enter(StatePhoneNumber, draft)
}

func onPhoneNumber(ev chat.Event, env Env) (State, []Effect) {
	if label(ev) == chat.LabelBack {
		return StateShippingTime, []Effect{Prompt{State: StateShippingTime}}
	}
	c, ok := ev.(chat.Contact)
	if !ok || c.PhoneNumber == "" {
		return reject(StatePhoneNumber, ev)
	}

	draft := env.Draft
	draft.PhoneNumber = c.PhoneNumber
	draft.IsVIP = env.IsVIP
	if draft.IsVIP || !env.Settings.IdentificationRequired {
		return enter(StateConfirmation, draft)
	}
	return enter(StateIdentify1, withQuestion(draft, env))
}

func onIdentify1(ev chat.Event, env Env) (State, []Effect) {
	if label(ev) == chat.LabelBack {
		if env.Settings.PhoneNumberRequired {
			return StatePhoneNumber, []Effect{Prompt{State: StatePhoneNumber}}
		}
		return StateShippingTime, []Effect{Prompt{State: StateShippingTime}}
	}
	p, ok := ev.(chat.Photo)
	if !ok {
		return reject(StateIdentify1, ev)
	}

	draft := env.Draft
	draft.IdentificationPhotoRef = p.FileRef
	if env.Settings.IdentificationStage2Required {
		return enter(StateIdentify2, draft)
	}
	return enter(StateConfirmation, draft)
}

func onIdentify2(ev chat.Event, env Env) (State, []Effect) {
	if label(ev) == chat.LabelBack {
		return StateIdentify1, []Effect{Prompt{State: StateIdentify1}}
	}
	p, ok := ev.(chat.Photo)
	if !ok {
		return reject(StateIdentify2, ev)
	}
	draft := env.Draft
	draft.IdentificationStage2Ref = p.FileRef
	return enter(StateConfirmation, draft)
}

func onConfirmation(ev chat.Event, env Env) (State, []Effect) {
	switch label(ev) {
	case chat.LabelConfirm:
		return StateInit, []Effect{Finalize{}}
	case chat.LabelBack:
		back := backFromConfirmation(env)
		if back == StateIdentify1 {
			return enter(back, withQuestion(env.Draft, env))
		}
		return back, []Effect{Prompt{State: back}}
	}
	return reject(StateConfirmation, ev)
}

// afterShippingTime は時刻が決まった後に進む状態を返す。
func afterShippingTime(s model.Settings) State {
	switch {
	case s.PhoneNumberRequired:
		return StatePhoneNumber
	case s.IdentificationRequired:
		return StateIdentify1
	}
	return StateConfirmation
}

// backFromConfirmation は確認画面の直前に通ったはずの状態を現在の設定から求める。
func backFromConfirmation(env Env) State {
	s := env.Settings
	switch {
	case s.IdentificationRequired && !env.Draft.IsVIP && s.IdentificationStage2Required:
		return StateIdentify2
	case s.IdentificationRequired && !env.Draft.IsVIP:
		return StateIdentify1
	case s.PhoneNumberRequired:
		return StatePhoneNumber
	}
	return StateShippingTime
}

// withQuestion はIdentify1へ入る下書きに本人確認の質問を設定する。
// 既に設定済みの場合は変更しない。
func withQuestion(draft session.ShippingDraft, env Env) session.ShippingDraft {
	if draft.PhotoQuestion == "" {
		draft.PhotoQuestion = env.PhotoQuestion
	}
	return draft
}

func enter(next State, draft session.ShippingDraft) (State, []Effect) {
	return next, []Effect{SetDraft{Draft: draft}, Prompt{State: next}}
}

func reject(state State, ev chat.Event) (State, []Effect) {
	return state, []Effect{Rejected{Err: invalidInput(state, ev)}, Prompt{State: state}}
}

func invalidInput(state State, ev chat.Event) error {
	return model.NewInvalidInputError(string(state), describe(ev))
}

func label(ev chat.Event) chat.Label {
	if b, ok := ev.(chat.Button); ok {
		return b.Label
	}
	return ""
}

func isCallbackEvent(ev chat.Event) bool {
	switch ev.(type) {
	case chat.MenuAction, chat.ProductAdd, chat.ProductRemove:
		return true
	}
	return false
}

func describe(ev chat.Event) string {
	switch e := ev.(type) {
	case chat.Button:
		return string(e.Label)
	case chat.Text:
		return e.Text
	case chat.Unknown:
		return e.Raw
	}
	return fmt.Sprintf("%T", ev)
}
