package db

import (
	"time"

	"gorm.io/datatypes"
)

// Order status values as delivered by the external loader.
const (
	OrderCompleted = "Completed"
	OrderPending   = "Pending"
	OrderCancelled = "Cancelled"
)

// Customer is a buyer as delivered by the external loader. Segment is
// denormalized from the latest RFM run so downstream consumers can read
// it without joining rfm_scores.
type Customer struct {
	ID uint `gorm:"primaryKey"`

	Name             string    `gorm:"size:255;not null"`
	Email            string    `gorm:"uniqueIndex;size:255;not null"`
	Country          string    `gorm:"size:64;index"`
	City             string    `gorm:"size:64"`
	RegistrationDate time.Time `gorm:"not null"`

	Segment string `gorm:"size:32"`
}

// Product is a catalog item.
type Product struct {
	ID uint `gorm:"primaryKey"`

	Name        string  `gorm:"size:255;not null"`
	Category    string  `gorm:"size:64;index;not null"`
	SubCategory string  `gorm:"size:64"`
	UnitPrice   float64 `gorm:"not null"`
}

// Order is a purchase transaction. TotalAmount is expected to equal the
// sum of its items' line totals; the loader owns that invariant, it is
// not enforced here.
type Order struct {
	ID uint `gorm:"primaryKey"`

	CustomerID uint       `gorm:"index;not null"`
	OrderDate  time.Time  `gorm:"index;not null"`
	ShipDate   *time.Time // nil until shipped

	TotalAmount float64 `gorm:"not null"`
	Status      string  `gorm:"size:16;index;not null"`

	// Attributes holds arbitrary key/value metadata supplied by the
	// loader (e.g. channel, campaign, payment method) so reports can
	// filter on it without schema changes.
	Attributes datatypes.JSONMap `gorm:"type:json"`

	Customer Customer    `gorm:"foreignKey:CustomerID"`
	Items    []OrderItem `gorm:"foreignKey:OrderID"`
}

// OrderItem is one product line within an order. LineTotal is expected
// to equal Quantity * UnitPrice * (1 - Discount).
type OrderItem struct {
	ID uint `gorm:"primaryKey"`

	OrderID   uint `gorm:"index;not null"`
	ProductID uint `gorm:"index;not null"`

	Quantity  int     `gorm:"not null"`
	UnitPrice float64 `gorm:"not null"`
	Discount  float64 `gorm:"not null;default:0"`
	LineTotal float64 `gorm:"not null"`

	Product Product `gorm:"foreignKey:ProductID"`
}

// RFMScore is the persisted per-customer behavioral score, fully
// recomputed by each analysis run. Customers without a single completed
// order still get a row (segment "No Activity") with nil recency and
// score fields, so they never silently vanish from segmentation.
type RFMScore struct {
	ID uint `gorm:"primaryKey"`

	CustomerID uint `gorm:"uniqueIndex;not null"`

	// Recency is days between the run's as-of time and the customer's
	// most recent completed order. Nil when there is no completed order.
	Recency   *int
	Frequency int64   `gorm:"not null"` // completed order count
	Monetary  float64 `gorm:"not null"` // total completed-order spend

	RScore *int // quintile 1-5, nil when unscored
	FScore *int
	MScore *int

	Segment    string    `gorm:"size:32;not null"`
	ComputedAt time.Time `gorm:"not null"`
}

// CustomerCohort records a customer's membership in their acquisition
// cohort for one distinct order month. CohortIndex is whole calendar
// months elapsed since the cohort month, 0 for the first purchase.
type CustomerCohort struct {
	ID uint `gorm:"primaryKey"`

	CustomerID uint      `gorm:"uniqueIndex:idx_customer_cohort_unique,priority:1;not null"`
	OrderMonth time.Time `gorm:"uniqueIndex:idx_customer_cohort_unique,priority:2;not null"` // first day of month (UTC)

	CohortMonth time.Time `gorm:"index;not null"` // first day of month (UTC)
	CohortIndex int       `gorm:"not null"`

	ComputedAt time.Time `gorm:"not null"`
}
