package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind selects which content collection a post belongs to.
type Kind string

const (
	KindNotice   Kind = "notice"
	KindJob      Kind = "job"
	KindBoard    Kind = "board"
	KindMaterial Kind = "material"
	KindGallery  Kind = "gallery"
)

// Kinds lists every content kind in display order.
var Kinds = []Kind{KindNotice, KindJob, KindBoard, KindMaterial, KindGallery}

var kindPaths = map[Kind]string{
	KindNotice:   "notices",
	KindJob:      "jobs",
	KindBoard:    "boards",
	KindMaterial: "materials",
	KindGallery:  "galleries",
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	if _, ok := kindPaths[k]; ok {
		return k, true
	}
	// accept the plural route segment as well
	for kind, p := range kindPaths {
		if p == s {
			return kind, true
		}
	}
	return "", false
}

// Path is the plural route segment, e.g. "notices".
func (k Kind) Path() string { return kindPaths[k] }

// AdminOnly reports whether only admins may create posts of this kind.
func (k Kind) AdminOnly() bool { return k != KindBoard }

const (
	FormatPlain = "plain"
	FormatHTML  = "html"
)

// Attachment references an object in object storage.
type Attachment struct {
	Name        string `bson:"name" json:"name"`
	Key         string `bson:"key" json:"key"`
	URL         string `bson:"url" json:"url"`
	ContentType string `bson:"content_type" json:"content_type"`
	Size        int64  `bson:"size" json:"size"`
}

// Attachments is persisted as a JSON text column by gorm.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Attachments) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("attachments: unsupported column type")
	}
	if len(raw) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(raw, a)
}

// Keys returns the object keys of all attachments.
func (a Attachments) Keys() []string {
	keys := make([]string, 0, len(a))
	for _, att := range a {
		if att.Key != "" {
			keys = append(keys, att.Key)
		}
	}
	return keys
}

// Post is a notice, job posting, board post, teaching material or gallery item.
type Post struct {
	ID          string      `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Kind        Kind        `gorm:"size:16;not null;index:idx_posts_kind_created,priority:1" bson:"kind" json:"kind"`
	Title       string      `gorm:"size:255;not null" bson:"title" json:"title"`
	Body        string      `gorm:"type:text" bson:"body" json:"body"`
	BodyFormat  string      `gorm:"size:8;not null;default:plain" bson:"body_format" json:"body_format"`
	Category    string      `gorm:"size:32" bson:"category,omitempty" json:"category,omitempty"`
	AuthorID    string      `gorm:"size:36;index" bson:"author_id" json:"author_id"`
	AuthorEmail string      `gorm:"size:255" bson:"author_email" json:"-"`
	AuthorName  string      `gorm:"size:64" bson:"author_name" json:"-"`
	Views       int64       `gorm:"not null;default:0" bson:"views" json:"views"`
	Pinned      bool        `gorm:"not null;default:false" bson:"pinned" json:"pinned"`
	Attachments Attachments `gorm:"type:text" bson:"attachments" json:"attachments"`
	ImageKey    string      `gorm:"size:255" bson:"image_key,omitempty" json:"image_key,omitempty"`
	ImageURL    string      `gorm:"size:512" bson:"image_url,omitempty" json:"image_url,omitempty"`
	CreatedAt   time.Time   `gorm:"index:idx_posts_kind_created,priority:2" bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `bson:"updated_at" json:"updated_at"`
}

// Stamp assigns an id on first save and refreshes timestamps.
func (p *Post) Stamp(now time.Time) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.BodyFormat == "" {
		p.BodyFormat = FormatPlain
	}
	if p.Attachments == nil {
		p.Attachments = Attachments{}
	}
}

// SetCover picks the first image attachment as the gallery cover.
func (p *Post) SetCover() {
	p.ImageKey, p.ImageURL = "", ""
	for _, att := range p.Attachments {
		if len(att.ContentType) >= 6 && att.ContentType[:6] == "image/" {
			p.ImageKey, p.ImageURL = att.Key, att.URL
			return
		}
	}
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	p.Stamp(time.Now())
	return nil
}
