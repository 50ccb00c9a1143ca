package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the slice of the identity provider's user that the pickup pipeline owns.
// Points only ever grow, and only through a relative increment.
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email       string         `gorm:"size:255;uniqueIndex" json:"email"`
	CommunityID *uuid.UUID     `gorm:"type:uuid;index" json:"community_id,omitempty"`
	Points      int64          `gorm:"not null;default:0" json:"points"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
