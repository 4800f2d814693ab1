package db

import (
	"time"
)

// APIKey represents a bearer key for pushing base entities from the
// external loader or reading report result sets. Each key belongs to a
// user and carries a source name and environment.
type APIKey struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// UserID links this key to the user who owns it.
	UserID uint `gorm:"index;not null"`

	// Name identifies the system behind the key (e.g. "warehouse-etl",
	// "powerbi-export"). It is also the value of the "source" label on
	// load metrics.
	Name string `gorm:"size:128;not null"`

	// Environment indicates the deployment environment (prod, staging, dev).
	Environment string `gorm:"size:32;not null"`

	// Key is the actual bearer token value (stored as-is, should be unique).
	Key string `gorm:"uniqueIndex;size:255;not null"`

	// Active indicates whether this key is currently enabled.
	Active bool `gorm:"default:true"`

	// User is the owner of this API key.
	User User `gorm:"foreignKey:UserID"`
}
