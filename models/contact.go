package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const ContactPending = "pending"

// Contact is an anonymous contact-form submission. It is never mutated after creation.
type Contact struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Name      string    `gorm:"size:64;not null" bson:"name" json:"name"`
	Email     string    `gorm:"size:255;not null" bson:"email" json:"email"`
	Phone     string    `gorm:"size:32" bson:"phone,omitempty" json:"phone,omitempty"`
	Subject   string    `gorm:"size:200;not null" bson:"subject" json:"subject"`
	Body      string    `gorm:"type:text;not null" bson:"body" json:"body"`
	Status    string    `gorm:"size:16;not null;default:pending" bson:"status" json:"status"`
	IP        string    `gorm:"size:45" bson:"ip,omitempty" json:"-"`
	CreatedAt time.Time `gorm:"index" bson:"created_at" json:"created_at"`
}

func (c *Contact) Stamp(now time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.Status == "" {
		c.Status = ContactPending
	}
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	c.Stamp(time.Now())
	return nil
}
