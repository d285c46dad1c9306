package models

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	StatusActive  = "active"
	StatusBlocked = "blocked"
)

// UnknownAuthorName is rendered when an author reference no longer resolves.
const UnknownAuthorName = "Unknown author"

// User is an association member. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Name         string    `gorm:"size:64;not null" bson:"name" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;serializer:emptynull" bson:"email,omitempty" json:"email"`
	Phone        string    `gorm:"size:32;uniqueIndex;serializer:emptynull" bson:"phone,omitempty" json:"phone"`
	PasswordHash string    `gorm:"size:255" bson:"password_hash,omitempty" json:"-"`
	Provider     string    `gorm:"size:32" bson:"provider,omitempty" json:"provider"`
	ProviderID   string    `gorm:"size:255;index" bson:"provider_id,omitempty" json:"-"`
	AvatarURL    string    `gorm:"size:512" bson:"avatar_url,omitempty" json:"avatar_url"`
	Role         string    `gorm:"size:16;not null;default:user" bson:"role" json:"role"`
	Status       string    `gorm:"size:16;not null;default:active" bson:"status" json:"status"`
	RegisterIP   string    `gorm:"size:45" bson:"register_ip,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsBlocked() bool { return u.Status == StatusBlocked }

// Stamp assigns an id on first save and refreshes timestamps.
func (u *User) Stamp(now time.Time) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
}

// BeforeCreate hook ensures ids and timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Stamp(time.Now())
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

func init() {
	schema.RegisterSerializer("emptynull", emptyAsNull{})
}

// emptyAsNull stores an empty string as NULL, so OAuth accounts without an
// email or phone do not collide on the unique indexes.
type emptyAsNull struct{}

func (emptyAsNull) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue interface{}) error {
	var v string
	switch raw := dbValue.(type) {
	case nil:
	case []byte:
		v = string(raw)
	case string:
		v = raw
	default:
		return fmt.Errorf("emptynull: cannot scan %T into %s", dbValue, field.Name)
	}
	field.ReflectValueOf(ctx, dst).SetString(v)
	return nil
}

func (emptyAsNull) Value(_ context.Context, _ *schema.Field, _ reflect.Value, fieldValue interface{}) (interface{}, error) {
	if v, _ := fieldValue.(string); v != "" {
		return v, nil
	}
	return nil, nil
}
