package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a reply attached to a post of any kind.
type Comment struct {
	ID          string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	PostID      string    `gorm:"size:36;index;not null" bson:"post_id" json:"post_id"`
	Kind        Kind      `gorm:"size:16;not null" bson:"kind" json:"kind"`
	Body        string    `gorm:"type:text;not null" bson:"body" json:"body"`
	AuthorID    string    `gorm:"size:36;index" bson:"author_id" json:"author_id"`
	AuthorEmail string    `gorm:"size:255" bson:"author_email" json:"-"`
	AuthorName  string    `gorm:"size:64" bson:"author_name" json:"-"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

func (c *Comment) Stamp(now time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	c.Stamp(time.Now())
	return nil
}
