package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Check is the order context a coupon is validated against.
type Check struct {
	UserID         string
	OrderAmount    decimal.Decimal
	UserUsageCount int
	Items          []Item
}

// Validate runs the eligibility checks in a fixed order and returns the
// first failure as a rejection, or nil when the coupon may be applied.
func Validate(c *Coupon, chk Check, now time.Time) error {
	if !c.IsActive {
		return ErrInactive
	}

	if now.Before(c.ValidFrom) {
		return ErrNotYetValid
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrExpired
	}

	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return ErrUsageLimitExceeded
	}
	if c.UserLimit > 0 && chk.UserUsageCount >= c.UserLimit {
		return ErrUserLimitExceeded
	}

	if c.MinOrderAmount.Valid && chk.OrderAmount.LessThan(c.MinOrderAmount.Decimal) {
		return ErrMinOrderNotMet
	}

	if c.Category != "" && !anyItemInCategory(chk.Items, c.Category) {
		return ErrCategoryMismatch
	}

	return nil
}

func anyItemInCategory(items []Item, category string) bool {
	for _, it := range items {
		for _, cat := range it.Categories {
			if strings.EqualFold(strings.TrimSpace(cat), strings.TrimSpace(category)) {
				return true
			}
		}
	}
	return false
}
