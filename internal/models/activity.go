package models

import (
	"time"

	"github.com/google/uuid"
)

type ActivityType string

const (
	ActivityTrashReport ActivityType = "trash_report"
	ActivityTrashPickup ActivityType = "trash_pickup"
)

// Activity is an append-only audit event. Every pickup has exactly one
// trash_report activity and at most one trash_pickup activity.
type Activity struct {
	ID         uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID    `gorm:"type:uuid;not null;index:idx_activities_user_type_created,priority:1" json:"user_id"`
	Type       ActivityType `gorm:"size:20;not null;index:idx_activities_user_type_created,priority:2" json:"type"`
	PickupID   *uuid.UUID   `gorm:"type:uuid;index" json:"pickup_id,omitempty"`
	Points     int          `gorm:"not null;default:0" json:"points"`
	Confidence *int         `json:"confidence,omitempty"`
	CreatedAt  time.Time    `gorm:"index:idx_activities_user_type_created,priority:3" json:"created_at"`
}

func (Activity) TableName() string {
	return "activities"
}
