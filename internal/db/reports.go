package db

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

// Activity tiers derived from days since a customer's last completed order.
const (
	ActivityActive  = "Active"
	ActivityAtRisk  = "At Risk"
	ActivityChurned = "Churned"
)

// ActivityTier classifies a recency in days against the configured
// thresholds (30/90 by default).
func ActivityTier(daysSinceLast, activeDays, churnDays int) string {
	switch {
	case daysSinceLast <= activeDays:
		return ActivityActive
	case daysSinceLast <= churnDays:
		return ActivityAtRisk
	default:
		return ActivityChurned
	}
}

// LifetimeValueRow ranks a customer by total completed-order revenue.
type LifetimeValueRow struct {
	CustomerID    uint      `json:"customer_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Country       string    `json:"country"`
	OrderCount    int64     `json:"order_count"`
	TotalRevenue  float64   `json:"total_revenue"`
	AvgOrderValue float64   `json:"avg_order_value"`
	LastOrder     time.Time `json:"last_order_date"`
	DaysSinceLast int       `json:"days_since_last_order"`
	Activity      string    `json:"activity"`
}

// LifetimeValueRanking returns customers with at least one completed
// order, ranked by revenue descending, each tagged with their activity
// tier. limit <= 0 returns all rows.
func LifetimeValueRanking(db *gorm.DB, asOf time.Time, activeDays, churnDays, limit int) ([]LifetimeValueRow, error) {
	summaries, err := CustomerSummaries(db, asOf)
	if err != nil {
		return nil, err
	}

	out := make([]LifetimeValueRow, 0, len(summaries))
	for _, s := range summaries {
		if s.OrderCount == 0 {
			continue
		}
		out = append(out, LifetimeValueRow{
			CustomerID:    s.CustomerID,
			Name:          s.Name,
			Email:         s.Email,
			Country:       s.Country,
			OrderCount:    s.OrderCount,
			TotalRevenue:  s.TotalRevenue,
			AvgOrderValue: *s.AvgOrderValue,
			LastOrder:     *s.LastOrder,
			DaysSinceLast: *s.DaysSinceLast,
			Activity:      ActivityTier(*s.DaysSinceLast, activeDays, churnDays),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRevenue != out[j].TotalRevenue {
			return out[i].TotalRevenue > out[j].TotalRevenue
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AcquisitionPoint is one month of new-customer acquisition, where a
// customer is acquired in the month of their first completed order.
type AcquisitionPoint struct {
	Month        string `json:"month"`
	NewCustomers int64  `json:"new_customers"`
	RunningTotal int64  `json:"running_total"`
}

// MonthlyAcquisition returns new customers per acquisition month with a
// running cumulative total, sorted ascending by month.
func MonthlyAcquisition(db *gorm.DB) ([]AcquisitionPoint, error) {
	var orders []Order
	if err := db.Where("status = ?", OrderCompleted).
		Select("customer_id", "order_date").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	first := make(map[uint]time.Time)
	for _, o := range orders {
		m := monthStart(o.OrderDate)
		if f, ok := first[o.CustomerID]; !ok || m.Before(f) {
			first[o.CustomerID] = m
		}
	}

	perMonth := make(map[time.Time]int64)
	for _, m := range first {
		perMonth[m]++
	}
	months := make([]time.Time, 0, len(perMonth))
	for m := range perMonth {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	out := make([]AcquisitionPoint, 0, len(months))
	var running int64
	for _, m := range months {
		running += perMonth[m]
		out = append(out, AcquisitionPoint{
			Month:        m.Format("2006-01"),
			NewCustomers: perMonth[m],
			RunningTotal: running,
		})
	}
	return out, nil
}

// RepeatPurchase reports how many customers with at least one completed
// order came back for a second one. RatePct is nil when there are no
// such customers.
type RepeatPurchase struct {
	Customers       int64    `json:"customers"`
	RepeatCustomers int64    `json:"repeat_customers"`
	RatePct         *float64 `json:"repeat_rate_pct"`
}

// RepeatPurchaseRate computes the repeat-purchase report over completed
// orders.
func RepeatPurchaseRate(db *gorm.DB) (RepeatPurchase, error) {
	var orders []Order
	if err := db.Where("status = ?", OrderCompleted).
		Select("customer_id").
		Find(&orders).Error; err != nil {
		return RepeatPurchase{}, err
	}

	perCustomer := make(map[uint]int64)
	for _, o := range orders {
		perCustomer[o.CustomerID]++
	}

	var rp RepeatPurchase
	rp.Customers = int64(len(perCustomer))
	for _, n := range perCustomer {
		if n > 1 {
			rp.RepeatCustomers++
		}
	}
	if rp.Customers > 0 {
		rate := float64(rp.RepeatCustomers) / float64(rp.Customers) * 100
		rp.RatePct = &rate
	}
	return rp, nil
}

// ProductRevenue ranks a product by completed-order revenue.
type ProductRevenue struct {
	ProductID   uint    `json:"product_id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	SubCategory string  `json:"sub_category"`
	UnitsSold   int64   `json:"units_sold"`
	Revenue     float64 `json:"revenue"`
}

// TopProducts returns the best-selling products by revenue across
// completed orders. limit <= 0 returns all products with sales.
func TopProducts(db *gorm.DB, limit int) ([]ProductRevenue, error) {
	q := db.Model(&OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("orders.status = ?", OrderCompleted).
		Select("products.id AS product_id, products.name AS name, products.category AS category, " +
			"products.sub_category AS sub_category, SUM(order_items.quantity) AS units_sold, " +
			"SUM(order_items.line_total) AS revenue").
		Group("products.id, products.name, products.category, products.sub_category").
		Order("revenue DESC, product_id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []ProductRevenue
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CategoryRevenue aggregates completed-order sales per product category.
type CategoryRevenue struct {
	Category   string  `json:"category"`
	OrderCount int64   `json:"order_count"`
	UnitsSold  int64   `json:"units_sold"`
	Revenue    float64 `json:"revenue"`
}

// CategoryPerformance returns per-category sales ranked by revenue.
func CategoryPerformance(db *gorm.DB) ([]CategoryRevenue, error) {
	var rows []CategoryRevenue
	err := db.Model(&OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("orders.status = ?", OrderCompleted).
		Select("products.category AS category, COUNT(DISTINCT order_items.order_id) AS order_count, " +
			"SUM(order_items.quantity) AS units_sold, SUM(order_items.line_total) AS revenue").
		Group("products.category").
		Order("revenue DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AffinityPair is an unordered pair of products bought together.
// ProductA is always the smaller ID, so each pair appears once and a
// product is never paired with itself.
type AffinityPair struct {
	ProductA uint   `json:"product_a_id"`
	NameA    string `json:"product_a"`
	ProductB uint   `json:"product_b_id"`
	NameB    string `json:"product_b"`
	Support  int64  `json:"orders_together"`
}

// ProductAffinity counts product pairs co-occurring in the same order
// across all orders, keeps pairs seen at least minSupport times and
// returns the top limit pairs by descending support.
func ProductAffinity(db *gorm.DB, minSupport, limit int) ([]AffinityPair, error) {
	type itemRow struct {
		OrderID   uint
		ProductID uint
	}
	var items []itemRow
	if err := db.Model(&OrderItem{}).
		Select("order_items.order_id AS order_id, order_items.product_id AS product_id").
		Scan(&items).Error; err != nil {
		return nil, err
	}

	// Distinct products per order; a product listed on two lines of the
	// same order is still one occurrence.
	perOrder := make(map[uint]map[uint]struct{})
	for _, it := range items {
		set := perOrder[it.OrderID]
		if set == nil {
			set = make(map[uint]struct{})
			perOrder[it.OrderID] = set
		}
		set[it.ProductID] = struct{}{}
	}

	type pairKey struct{ a, b uint }
	support := make(map[pairKey]int64)
	for _, set := range perOrder {
		ids := make([]uint, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				support[pairKey{ids[i], ids[j]}]++
			}
		}
	}

	pairs := make([]AffinityPair, 0, len(support))
	for k, n := range support {
		if int(n) < minSupport {
			continue
		}
		pairs = append(pairs, AffinityPair{ProductA: k.a, ProductB: k.b, Support: n})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Support != pairs[j].Support {
			return pairs[i].Support > pairs[j].Support
		}
		if pairs[i].ProductA != pairs[j].ProductA {
			return pairs[i].ProductA < pairs[j].ProductA
		}
		return pairs[i].ProductB < pairs[j].ProductB
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}

	if len(pairs) > 0 {
		var products []Product
		if err := db.Select("id", "name").Find(&products).Error; err != nil {
			return nil, err
		}
		names := make(map[uint]string, len(products))
		for _, p := range products {
			names[p.ID] = p.Name
		}
		for i := range pairs {
			pairs[i].NameA = names[pairs[i].ProductA]
			pairs[i].NameB = names[pairs[i].ProductB]
		}
	}
	return pairs, nil
}

// GrowthPoint is one month of revenue with its month-over-month growth.
// GrowthPct is nil for the first month in the series and whenever the
// previous month's revenue is zero.
type GrowthPoint struct {
	Month     string   `json:"month"`
	Revenue   float64  `json:"revenue"`
	GrowthPct *float64 `json:"growth_pct"`
}

// RevenueGrowth derives the month-over-month growth series from the
// monthly revenue aggregate.
func RevenueGrowth(db *gorm.DB) ([]GrowthPoint, error) {
	series, err := MonthlyRevenueSeries(db)
	if err != nil {
		return nil, err
	}

	out := make([]GrowthPoint, 0, len(series))
	for i, m := range series {
		p := GrowthPoint{Month: m.Month, Revenue: m.Revenue}
		if i > 0 && series[i-1].Revenue != 0 {
			growth := (m.Revenue - series[i-1].Revenue) / series[i-1].Revenue * 100
			p.GrowthPct = &growth
		}
		out = append(out, p)
	}
	return out, nil
}

// CountryRevenue aggregates completed-order revenue per customer country.
type CountryRevenue struct {
	Country    string  `json:"country"`
	OrderCount int64   `json:"order_count"`
	Revenue    float64 `json:"revenue"`
}

// RevenueByCountry returns per-country revenue from completed orders,
// ranked descending.
func RevenueByCountry(db *gorm.DB) ([]CountryRevenue, error) {
	var rows []CountryRevenue
	err := db.Model(&Order{}).
		Joins("JOIN customers ON customers.id = orders.customer_id").
		Where("orders.status = ?", OrderCompleted).
		Select("customers.country AS country, COUNT(*) AS order_count, SUM(orders.total_amount) AS revenue").
		Group("customers.country").
		Order("revenue DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// WeekdayRevenue aggregates completed-order revenue per day of week.
type WeekdayRevenue struct {
	Weekday    string  `json:"weekday"`
	OrderCount int64   `json:"order_count"`
	Revenue    float64 `json:"revenue"`
}

// RevenueByWeekday returns revenue per day of week from completed
// orders, Monday first, with zero rows for days without orders. Weekday
// extraction differs between SQL engines, so it is derived in Go.
func RevenueByWeekday(db *gorm.DB) ([]WeekdayRevenue, error) {
	var orders []Order
	if err := db.Where("status = ?", OrderCompleted).
		Select("order_date", "total_amount").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	type agg struct {
		count int64
		total float64
	}
	byDay := make(map[time.Weekday]*agg)
	for _, o := range orders {
		d := o.OrderDate.Weekday()
		a := byDay[d]
		if a == nil {
			a = &agg{}
			byDay[d] = a
		}
		a.count++
		a.total += o.TotalAmount
	}

	week := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	out := make([]WeekdayRevenue, 0, len(week))
	for _, d := range week {
		row := WeekdayRevenue{Weekday: d.String()}
		if a := byDay[d]; a != nil {
			row.OrderCount = a.count
			row.Revenue = a.total
		}
		out = append(out, row)
	}
	return out, nil
}

// ChurnReport is the share of customers whose last completed order is
// older than the churn threshold. RatePct is nil when there are no
// customers with completed orders.
type ChurnReport struct {
	Customers int64    `json:"customers"`
	Churned   int64    `json:"churned"`
	RatePct   *float64 `json:"churn_rate_pct"`
}

// ChurnRate computes the churn report as of the given time. Customers
// without any completed order are excluded; they appear as "No Activity"
// in the segment breakdown instead.
func ChurnRate(db *gorm.DB, asOf time.Time, churnDays int) (ChurnReport, error) {
	summaries, err := CustomerSummaries(db, asOf)
	if err != nil {
		return ChurnReport{}, err
	}

	var report ChurnReport
	for _, s := range summaries {
		if s.DaysSinceLast == nil {
			continue
		}
		report.Customers++
		if *s.DaysSinceLast > churnDays {
			report.Churned++
		}
	}
	if report.Customers > 0 {
		rate := float64(report.Churned) / float64(report.Customers) * 100
		report.RatePct = &rate
	}
	return report, nil
}
