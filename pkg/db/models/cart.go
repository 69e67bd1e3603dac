package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart holds pre-order state for exactly one owner: a user or a guest cookie.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid"`
	GuestID   *string    `gorm:"column:guest_id"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// SubtotalCents sums unit price times quantity over the cart lines.
func (c Cart) SubtotalCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotalCents()
	}
	return total
}

// OwnedBy reports whether the cart belongs to the given user or guest.
func (c Cart) OwnedBy(userID *uuid.UUID, guestID *string) bool {
	if c.UserID != nil {
		return userID != nil && *c.UserID == *userID
	}
	if c.GuestID != nil {
		return guestID != nil && *c.GuestID == *guestID
	}
	return false
}
