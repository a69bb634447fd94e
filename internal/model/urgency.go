package model

import "time"

// Urgency は期限までの残り日数から判定した消費の緊急度。
type Urgency string

const (
	UrgencyOK           Urgency = "ok"
	UrgencyUseSoon      Urgency = "use_soon"
	UrgencyUseToday     Urgency = "use_today"
	UrgencyWouldntTrust Urgency = "wouldnt_trust"
)

// expiringSoonDays 以内に期限を迎える商品は use_soon とする。
const expiringSoonDays = 2

// Rank は緊急度の並び順を返す（小さいほど優先）。
func (u Urgency) Rank() int {
	switch u {
	case UrgencyUseToday:
		return 0
	case UrgencyUseSoon:
		return 1
	case UrgencyOK:
		return 2
	default:
		return 3
	}
}

// EffectiveExpiry は判定に用いる期限を返す。
// 利用者が入力した期限を優先し、無ければ推定期限を使う。
func (p *Product) EffectiveExpiry() *time.Time {
	if p.ExpiryDate != nil {
		return p.ExpiryDate
	}
	return p.EstimatedExpiryDate
}

// DaysUntilExpiry は期限までの日数を返す。期限が不明な場合はok=false。
// 当日が期限なら0、期限切れなら負の値になる。
func (p *Product) DaysUntilExpiry(now time.Time) (days int, ok bool) {
	exp := p.EffectiveExpiry()
	if exp == nil {
		return 0, false
	}
	diff := startOfDay(*exp).Sub(startOfDay(now))
	return int(diff.Hours() / 24), true
}

// IsExpired は期限切れかどうかを返す。
func (p *Product) IsExpired(now time.Time) bool {
	days, ok := p.DaysUntilExpiry(now)
	return ok && days < 0
}

// Urgency は商品の緊急度を判定する。
//   - 期限切れ → wouldnt_trust
//   - 当日 → use_today
//   - 1〜2日 → use_soon
//   - 3日以上または期限不明 → ok
func (p *Product) Urgency(now time.Time) Urgency {
	days, ok := p.DaysUntilExpiry(now)
	switch {
	case !ok:
		return UrgencyOK
	case days < 0:
		return UrgencyWouldntTrust
	case days == 0:
		return UrgencyUseToday
	case days <= expiringSoonDays:
		return UrgencyUseSoon
	default:
		return UrgencyOK
	}
}
