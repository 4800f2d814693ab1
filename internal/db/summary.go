package db

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

// CustomerSummary is the per-customer aggregate formerly kept as a
// database view. It is computed on demand from the base tables; dates
// and averages are nil for customers without a completed order so
// consumers never see a fabricated value.
type CustomerSummary struct {
	CustomerID    uint       `json:"customer_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Country       string     `json:"country"`
	OrderCount    int64      `json:"order_count"`
	TotalRevenue  float64    `json:"total_revenue"`
	AvgOrderValue *float64   `json:"avg_order_value"`
	FirstOrder    *time.Time `json:"first_order_date"`
	LastOrder     *time.Time `json:"last_order_date"`
	DaysSinceLast *int       `json:"days_since_last_order"`
}

// CustomerSummaries aggregates completed orders up to asOf for every
// customer, including customers with no completed orders.
func CustomerSummaries(db *gorm.DB, asOf time.Time) ([]CustomerSummary, error) {
	var customers []Customer
	if err := db.Find(&customers).Error; err != nil {
		return nil, err
	}
	var orders []Order
	if err := db.Where("status = ? AND order_date <= ?", OrderCompleted, asOf).
		Select("customer_id", "order_date", "total_amount").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	type agg struct {
		count       int64
		total       float64
		first, last time.Time
	}
	byCustomer := make(map[uint]*agg)
	for _, o := range orders {
		a := byCustomer[o.CustomerID]
		if a == nil {
			a = &agg{first: o.OrderDate, last: o.OrderDate}
			byCustomer[o.CustomerID] = a
		}
		a.count++
		a.total += o.TotalAmount
		if o.OrderDate.Before(a.first) {
			a.first = o.OrderDate
		}
		if o.OrderDate.After(a.last) {
			a.last = o.OrderDate
		}
	}

	out := make([]CustomerSummary, 0, len(customers))
	for _, c := range customers {
		s := CustomerSummary{
			CustomerID: c.ID,
			Name:       c.Name,
			Email:      c.Email,
			Country:    c.Country,
		}
		if a := byCustomer[c.ID]; a != nil {
			s.OrderCount = a.count
			s.TotalRevenue = a.total
			avg := a.total / float64(a.count)
			s.AvgOrderValue = &avg
			first, last := a.first, a.last
			s.FirstOrder = &first
			s.LastOrder = &last
			days := int(asOf.Sub(a.last).Hours() / 24)
			s.DaysSinceLast = &days
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

// MonthlyRevenue is the per-calendar-month revenue aggregate formerly
// kept as a database view, over completed orders only.
type MonthlyRevenue struct {
	Month           string  `json:"month"` // YYYY-MM
	OrderCount      int64   `json:"order_count"`
	UniqueCustomers int64   `json:"unique_customers"`
	Revenue         float64 `json:"revenue"`
	AvgOrderValue   float64 `json:"avg_order_value"`
}

// MonthlyRevenueSeries aggregates completed orders per calendar month,
// sorted ascending. Months without orders do not appear in the series.
func MonthlyRevenueSeries(db *gorm.DB) ([]MonthlyRevenue, error) {
	var orders []Order
	if err := db.Where("status = ?", OrderCompleted).
		Select("customer_id", "order_date", "total_amount").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	type agg struct {
		count     int64
		total     float64
		customers map[uint]struct{}
	}
	byMonth := make(map[time.Time]*agg)
	for _, o := range orders {
		m := monthStart(o.OrderDate)
		a := byMonth[m]
		if a == nil {
			a = &agg{customers: make(map[uint]struct{})}
			byMonth[m] = a
		}
		a.count++
		a.total += o.TotalAmount
		a.customers[o.CustomerID] = struct{}{}
	}

	months := make([]time.Time, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	out := make([]MonthlyRevenue, 0, len(months))
	for _, m := range months {
		a := byMonth[m]
		out = append(out, MonthlyRevenue{
			Month:           m.Format("2006-01"),
			OrderCount:      a.count,
			UniqueCustomers: int64(len(a.customers)),
			Revenue:         a.total,
			AvgOrderValue:   a.total / float64(a.count),
		})
	}
	return out, nil
}
