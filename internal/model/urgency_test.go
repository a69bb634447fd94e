package model

import (
	"testing"
	"time"
)

// TestProduct_Urgency は期限までの日数と緊急度の対応を検証する。
func TestProduct_Urgency(t *testing.T) {
	now := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	day := func(offset int) *time.Time {
		d := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
		return &d
	}

	tests := []struct {
		name      string
		expiry    *time.Time
		estimated *time.Time
		want      Urgency
		expired   bool
	}{
		{"no date", nil, nil, UrgencyOK, false},
		{"expired yesterday", day(-1), nil, UrgencyWouldntTrust, true},
		{"today", day(0), nil, UrgencyUseToday, false},
		{"tomorrow", day(1), nil, UrgencyUseSoon, false},
		{"in two days", day(2), nil, UrgencyUseSoon, false},
		{"in three days", day(3), nil, UrgencyOK, false},
		{"estimated fallback", nil, day(1), UrgencyUseSoon, false},
		{"expiry wins over estimate", day(10), day(0), UrgencyOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ReconstructProduct(Product{Name: "x", ExpiryDate: tt.expiry, EstimatedExpiryDate: tt.estimated})
			if got := p.Urgency(now); got != tt.want {
				t.Errorf("Urgency = %q, want %q", got, tt.want)
			}
			if got := p.IsExpired(now); got != tt.expired {
				t.Errorf("IsExpired = %v, want %v", got, tt.expired)
			}
		})
	}
}

// TestUrgency_Rank は並び順（当日 → 近日 → 余裕あり → 期限切れ）を検証する。
func TestUrgency_Rank(t *testing.T) {
	order := []Urgency{UrgencyUseToday, UrgencyUseSoon, UrgencyOK, UrgencyWouldntTrust}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s.Rank() should be less than %s.Rank()", order[i-1], order[i])
		}
	}
}
