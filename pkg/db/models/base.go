package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID gives rows a client-side id so inserts behave the same on postgres
// and sqlite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

func (c *CheckoutSession) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

func (o *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

func (f *FulfillmentOrder) BeforeCreate(*gorm.DB) error {
	assignID(&f.ID)
	return nil
}

func (d *Donation) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

func (p *SubscriptionPayment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
