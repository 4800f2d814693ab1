package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestActivityTier(t *testing.T) {
	assert.Equal(t, ActivityActive, ActivityTier(0, 30, 90))
	assert.Equal(t, ActivityActive, ActivityTier(30, 30, 90))
	assert.Equal(t, ActivityAtRisk, ActivityTier(31, 30, 90))
	assert.Equal(t, ActivityAtRisk, ActivityTier(90, 30, 90))
	assert.Equal(t, ActivityChurned, ActivityTier(91, 30, 90))
}

func seedReportData(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	customers := []Customer{
		{ID: 1, Name: "Ada", Email: "ada@example.com", Country: "UK", RegistrationDate: date(2023, time.December, 1)},
		{ID: 2, Name: "Ben", Email: "ben@example.com", Country: "USA", RegistrationDate: date(2024, time.January, 1)},
		{ID: 3, Name: "Cleo", Email: "cleo@example.com", Country: "USA", RegistrationDate: date(2024, time.February, 1)},
	}
	require.NoError(t, gdb.Create(&customers).Error)

	products := []Product{
		{ID: 1, Name: "Laptop Model 1", Category: "Electronics", SubCategory: "Laptop", UnitPrice: 1000},
		{ID: 2, Name: "Phone Model 1", Category: "Electronics", SubCategory: "Phone", UnitPrice: 500},
		{ID: 3, Name: "Chair Model 1", Category: "Home", SubCategory: "Chair", UnitPrice: 150},
	}
	require.NoError(t, gdb.Create(&products).Error)

	orders := []Order{
		// January: Ada and Ben. Monday 2024-01-01 and Friday 2024-01-05.
		{ID: 1, CustomerID: 1, OrderDate: date(2024, time.January, 1), TotalAmount: 1500, Status: OrderCompleted},
		{ID: 2, CustomerID: 2, OrderDate: date(2024, time.January, 5), TotalAmount: 500, Status: OrderCompleted},
		// February: Ada again.
		{ID: 3, CustomerID: 1, OrderDate: date(2024, time.February, 5), TotalAmount: 1000, Status: OrderCompleted},
		// Cancelled orders never count toward revenue reports.
		{ID: 4, CustomerID: 3, OrderDate: date(2024, time.February, 10), TotalAmount: 9999, Status: OrderCancelled},
	}
	require.NoError(t, gdb.Create(&orders).Error)

	items := []OrderItem{
		{ID: 1, OrderID: 1, ProductID: 1, Quantity: 1, UnitPrice: 1000, LineTotal: 1000},
		{ID: 2, OrderID: 1, ProductID: 2, Quantity: 1, UnitPrice: 500, LineTotal: 500},
		{ID: 3, OrderID: 2, ProductID: 2, Quantity: 1, UnitPrice: 500, LineTotal: 500},
		{ID: 4, OrderID: 3, ProductID: 1, Quantity: 1, UnitPrice: 1000, LineTotal: 1000},
		{ID: 5, OrderID: 4, ProductID: 3, Quantity: 1, UnitPrice: 150, LineTotal: 150},
	}
	require.NoError(t, gdb.Create(&items).Error)
}

func TestLifetimeValueRanking(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)
	asOf := date(2024, time.February, 15)

	rows, err := LifetimeValueRanking(gdb, asOf, 30, 90, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2, "customers without completed orders are not ranked")

	assert.Equal(t, uint(1), rows[0].CustomerID)
	assert.Equal(t, 2500.0, rows[0].TotalRevenue)
	assert.Equal(t, ActivityActive, rows[0].Activity)

	assert.Equal(t, uint(2), rows[1].CustomerID)
	assert.Equal(t, ActivityAtRisk, rows[1].Activity)
}

func TestMonthlyAcquisition(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	series, err := MonthlyAcquisition(gdb)
	require.NoError(t, err)
	require.Len(t, series, 1, "both buyers were acquired in January")

	assert.Equal(t, "2024-01", series[0].Month)
	assert.Equal(t, int64(2), series[0].NewCustomers)
	assert.Equal(t, int64(2), series[0].RunningTotal)
}

func TestRepeatPurchaseRate(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	report, err := RepeatPurchaseRate(gdb)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Customers)
	assert.Equal(t, int64(1), report.RepeatCustomers)
	require.NotNil(t, report.RatePct)
	assert.InDelta(t, 50.0, *report.RatePct, 0.001)
}

func TestRepeatPurchaseRateEmpty(t *testing.T) {
	gdb := newTestDB(t)

	report, err := RepeatPurchaseRate(gdb)
	require.NoError(t, err)
	assert.Zero(t, report.Customers)
	assert.Nil(t, report.RatePct, "rate must be absent, not a fabricated number")
}

func TestTopProducts(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	rows, err := TopProducts(gdb, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "products sold only in cancelled orders are excluded")

	assert.Equal(t, uint(1), rows[0].ProductID)
	assert.Equal(t, 2000.0, rows[0].Revenue)
	assert.Equal(t, uint(2), rows[1].ProductID)
	assert.Equal(t, 1000.0, rows[1].Revenue)
}

func TestCategoryPerformance(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	rows, err := CategoryPerformance(gdb)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Electronics", rows[0].Category)
	assert.Equal(t, int64(3), rows[0].OrderCount)
	assert.Equal(t, 3000.0, rows[0].Revenue)
}

func TestProductAffinity(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	pairs, err := ProductAffinity(gdb, 1, 20)
	require.NoError(t, err)
	require.Len(t, pairs, 1, "only order 1 contains two distinct products")

	p := pairs[0]
	assert.Less(t, p.ProductA, p.ProductB, "pairs are ordered by product ID")
	assert.Equal(t, uint(1), p.ProductA)
	assert.Equal(t, uint(2), p.ProductB)
	assert.Equal(t, int64(1), p.Support)
	assert.Equal(t, "Laptop Model 1", p.NameA)
	assert.Equal(t, "Phone Model 1", p.NameB)
}

func TestProductAffinityMinSupport(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	pairs, err := ProductAffinity(gdb, 10, 20)
	require.NoError(t, err)
	assert.Empty(t, pairs, "pairs below the support threshold are dropped")
}

func TestProductAffinityNoSelfPairs(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	// The same product on two lines of one order is a single occurrence,
	// never a (p, p) pair.
	extra := []OrderItem{
		{ID: 10, OrderID: 2, ProductID: 2, Quantity: 2, UnitPrice: 500, LineTotal: 1000},
	}
	require.NoError(t, gdb.Create(&extra).Error)

	pairs, err := ProductAffinity(gdb, 1, 20)
	require.NoError(t, err)
	for _, p := range pairs {
		assert.NotEqual(t, p.ProductA, p.ProductB)
	}
}

func TestRevenueGrowth(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	series, err := RevenueGrowth(gdb)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, "2024-01", series[0].Month)
	assert.Equal(t, 2000.0, series[0].Revenue)
	assert.Nil(t, series[0].GrowthPct, "the first month has no growth rate")

	assert.Equal(t, "2024-02", series[1].Month)
	require.NotNil(t, series[1].GrowthPct)
	assert.InDelta(t, -50.0, *series[1].GrowthPct, 0.001)
}

func TestRevenueByCountry(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	rows, err := RevenueByCountry(gdb)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "UK", rows[0].Country)
	assert.Equal(t, 2500.0, rows[0].Revenue)
	assert.Equal(t, "USA", rows[1].Country)
	assert.Equal(t, 500.0, rows[1].Revenue)
}

func TestRevenueByWeekday(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	rows, err := RevenueByWeekday(gdb)
	require.NoError(t, err)
	require.Len(t, rows, 7, "every weekday appears, zero-filled")

	assert.Equal(t, "Monday", rows[0].Weekday)
	assert.Equal(t, 2500.0, rows[0].Revenue, "2024-01-01 and 2024-02-05 are Mondays")
	assert.Equal(t, "Friday", rows[4].Weekday)
	assert.Equal(t, 500.0, rows[4].Revenue)
	assert.Equal(t, "Sunday", rows[6].Weekday)
	assert.Zero(t, rows[6].Revenue)
}

func TestChurnRate(t *testing.T) {
	gdb := newTestDB(t)
	seedReportData(t, gdb)

	// Far enough out that Ben (last order 2024-01-05) is churned while
	// Ada (last order 2024-02-05) is not.
	asOf := date(2024, time.April, 20)
	report, err := ChurnRate(gdb, asOf, 90)
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Customers)
	assert.Equal(t, int64(1), report.Churned)
	require.NotNil(t, report.RatePct)
	assert.InDelta(t, 50.0, *report.RatePct, 0.001)
}

func TestChurnRateNoCustomers(t *testing.T) {
	gdb := newTestDB(t)

	report, err := ChurnRate(gdb, date(2024, time.April, 20), 90)
	require.NoError(t, err)
	assert.Nil(t, report.RatePct)
}
