package session

import "testing"

func TestSession_ClearDraftKeepsCart(t *testing.T) {
	s := New()
	s.Cart["p1"] = 2
	s.Draft.PhoneNumber = "+100"

	s.ClearDraft()

	if s.Cart["p1"] != 2 {
		t.Errorf("cart[p1] = %d, want 2", s.Cart["p1"])
	}
	if !s.Draft.IsEmpty() {
		t.Errorf("draft = %+v, want empty", s.Draft)
	}
}

func TestSession_Clear(t *testing.T) {
	s := New()
	s.Cart["p1"] = 2
	s.Draft.Address = "Main st."

	s.Clear()

	if len(s.Cart) != 0 || s.Cart == nil {
		t.Errorf("cart = %v, want empty non-nil map", s.Cart)
	}
	if !s.Draft.IsEmpty() {
		t.Errorf("draft = %+v, want empty", s.Draft)
	}
}

func TestShippingDraft_ShippingTime(t *testing.T) {
	tests := []struct {
		name  string
		draft ShippingDraft
		want  string
	}{
		{"now", ShippingDraft{Time: TimeNow}, "now"},
		{"scheduled", ShippingDraft{Time: TimeScheduled, TimeText: "18:30"}, "18:30"},
		{"unset", ShippingDraft{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.draft.ShippingTime(); got != tt.want {
				t.Errorf("ShippingTime() = %q, want %q", got, tt.want)
			}
		})
	}
}
