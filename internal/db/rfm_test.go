package db

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	return gdb
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAssignSegment(t *testing.T) {
	cases := []struct {
		r, f, m int
		want    string
	}{
		{5, 5, 5, SegmentChampions},
		{4, 4, 4, SegmentChampions},
		{3, 3, 3, SegmentLoyal},
		{4, 3, 3, SegmentLoyal},
		{3, 2, 1, SegmentPotentialLoyalist},
		{5, 1, 5, SegmentPotentialLoyalist},
		{2, 3, 1, SegmentAtRisk},
		{1, 5, 5, SegmentAtRisk},
		{1, 1, 3, SegmentCantLose},
		{2, 2, 5, SegmentCantLose},
		{1, 2, 2, SegmentLost},
		{2, 1, 1, SegmentLost},
		// m too low for Champions and Loyal, f too high for the r>=3
		// branch, r too high for the r<=2 branches.
		{4, 4, 2, SegmentOthers},
		{3, 3, 2, SegmentOthers},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("r%d_f%d_m%d", tc.r, tc.f, tc.m), func(t *testing.T) {
			assert.Equal(t, tc.want, AssignSegment(tc.r, tc.f, tc.m))
		})
	}
}

func TestQuintileBucketSizes(t *testing.T) {
	for _, n := range []int{1, 2, 4, 5, 6, 7, 10, 23, 100, 101} {
		sizes := make(map[int]int)
		prev := 1
		for i := 0; i < n; i++ {
			b := quintile(i, n)
			assert.GreaterOrEqual(t, b, 1)
			assert.LessOrEqual(t, b, 5)
			assert.GreaterOrEqual(t, b, prev, "buckets must be non-decreasing")
			prev = b
			sizes[b]++
		}
		min, max := n, 0
		for _, s := range sizes {
			if s < min {
				min = s
			}
			if s > max {
				max = s
			}
		}
		assert.LessOrEqual(t, max-min, 1, "bucket sizes for n=%d differ by more than 1", n)
	}
}

func TestComputeRFMMetrics(t *testing.T) {
	asOf := date(2024, time.June, 15)
	customers := []Customer{{ID: 1}, {ID: 2}}
	orders := []Order{
		{CustomerID: 1, OrderDate: date(2024, time.June, 5), TotalAmount: 100},
		{CustomerID: 1, OrderDate: date(2024, time.May, 1), TotalAmount: 50},
		{CustomerID: 1, OrderDate: date(2024, time.March, 1), TotalAmount: 25},
	}

	rows := computeRFM(customers, orders, asOf)
	require.Len(t, rows, 2)

	byID := make(map[uint]RFMScore)
	for _, r := range rows {
		byID[r.CustomerID] = r
	}

	scored := byID[1]
	require.NotNil(t, scored.Recency)
	assert.Equal(t, 10, *scored.Recency)
	assert.Equal(t, int64(3), scored.Frequency)
	assert.Equal(t, 175.0, scored.Monetary)
	require.NotNil(t, scored.RScore)
	assert.NotEqual(t, SegmentNoActivity, scored.Segment)

	unscored := byID[2]
	assert.Nil(t, unscored.Recency)
	assert.Nil(t, unscored.RScore)
	assert.Nil(t, unscored.FScore)
	assert.Nil(t, unscored.MScore)
	assert.Equal(t, int64(0), unscored.Frequency)
	assert.Equal(t, SegmentNoActivity, unscored.Segment)
}

func TestComputeRFMIgnoresOrdersAfterAsOf(t *testing.T) {
	asOf := date(2024, time.June, 15)
	customers := []Customer{{ID: 1}}
	orders := []Order{
		{CustomerID: 1, OrderDate: date(2024, time.June, 1), TotalAmount: 10},
		{CustomerID: 1, OrderDate: date(2024, time.July, 1), TotalAmount: 999},
	}

	rows := computeRFM(customers, orders, asOf)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Frequency)
	assert.Equal(t, 10.0, rows[0].Monetary)
	require.NotNil(t, rows[0].Recency)
	assert.Equal(t, 14, *rows[0].Recency)
}

func TestComputeRFMDeterministic(t *testing.T) {
	asOf := date(2024, time.June, 15)
	var customers []Customer
	var orders []Order
	for i := uint(1); i <= 20; i++ {
		customers = append(customers, Customer{ID: i})
		for j := 0; j < int(i%5)+1; j++ {
			orders = append(orders, Order{
				CustomerID:  i,
				OrderDate:   date(2024, time.January+time.Month(j), 3),
				TotalAmount: float64(i) * 10,
			})
		}
	}

	first := computeRFM(customers, orders, asOf)
	second := computeRFM(customers, orders, asOf)
	assert.Equal(t, first, second)
}

func seedRFMData(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	customers := []Customer{
		{ID: 1, Name: "Ada", Email: "ada@example.com", Country: "UK", RegistrationDate: date(2023, time.January, 1)},
		{ID: 2, Name: "Ben", Email: "ben@example.com", Country: "USA", RegistrationDate: date(2023, time.February, 1)},
		{ID: 3, Name: "Cleo", Email: "cleo@example.com", Country: "USA", RegistrationDate: date(2023, time.March, 1)},
		{ID: 4, Name: "Dan", Email: "dan@example.com", Country: "Japan", RegistrationDate: date(2023, time.April, 1)},
	}
	require.NoError(t, gdb.Create(&customers).Error)

	orders := []Order{
		{ID: 1, CustomerID: 1, OrderDate: date(2024, time.June, 10), TotalAmount: 300, Status: OrderCompleted},
		{ID: 2, CustomerID: 1, OrderDate: date(2024, time.May, 10), TotalAmount: 200, Status: OrderCompleted},
		{ID: 3, CustomerID: 2, OrderDate: date(2024, time.January, 10), TotalAmount: 50, Status: OrderCompleted},
		{ID: 4, CustomerID: 3, OrderDate: date(2024, time.June, 1), TotalAmount: 120, Status: OrderCompleted},
		// Dan only has a cancelled order, so he is unscored.
		{ID: 5, CustomerID: 4, OrderDate: date(2024, time.June, 12), TotalAmount: 80, Status: OrderCancelled},
	}
	require.NoError(t, gdb.Create(&orders).Error)
}

func TestRunRFMOnce(t *testing.T) {
	gdb := newTestDB(t)
	seedRFMData(t, gdb)
	asOf := date(2024, time.June, 15)

	require.NoError(t, RunRFMOnce(gdb, asOf))

	var scores []RFMScore
	require.NoError(t, gdb.Order("customer_id").Find(&scores).Error)
	require.Len(t, scores, 4)

	for _, s := range scores[:3] {
		require.NotNil(t, s.RScore, "customer %d should be scored", s.CustomerID)
		assert.GreaterOrEqual(t, *s.RScore, 1)
		assert.LessOrEqual(t, *s.RScore, 5)
		assert.GreaterOrEqual(t, *s.Recency, 0)
	}

	assert.Equal(t, SegmentNoActivity, scores[3].Segment)
	assert.Nil(t, scores[3].RScore)

	// Segment labels are mirrored onto the customers table.
	var dan Customer
	require.NoError(t, gdb.First(&dan, 4).Error)
	assert.Equal(t, SegmentNoActivity, dan.Segment)
}

func TestRunRFMOnceIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	seedRFMData(t, gdb)
	asOf := date(2024, time.June, 15)

	require.NoError(t, RunRFMOnce(gdb, asOf))
	var firstRun []RFMScore
	require.NoError(t, gdb.Order("customer_id").Find(&firstRun).Error)

	require.NoError(t, RunRFMOnce(gdb, asOf))
	var secondRun []RFMScore
	require.NoError(t, gdb.Order("customer_id").Find(&secondRun).Error)

	require.Len(t, secondRun, len(firstRun), "re-running must not accumulate rows")
	for i := range firstRun {
		assert.Equal(t, firstRun[i].CustomerID, secondRun[i].CustomerID)
		assert.Equal(t, firstRun[i].Segment, secondRun[i].Segment)
		assert.Equal(t, firstRun[i].Frequency, secondRun[i].Frequency)
		assert.Equal(t, firstRun[i].Monetary, secondRun[i].Monetary)
	}

	var dups []struct {
		CustomerID uint
		N          int64
	}
	require.NoError(t, gdb.Model(&RFMScore{}).
		Select("customer_id, COUNT(*) AS n").
		Group("customer_id").
		Having("COUNT(*) > 1").
		Scan(&dups).Error)
	assert.Empty(t, dups, "no customer may have more than one score row")
}

func TestSegmentBreakdown(t *testing.T) {
	gdb := newTestDB(t)
	seedRFMData(t, gdb)
	require.NoError(t, RunRFMOnce(gdb, date(2024, time.June, 15)))

	rows, err := SegmentBreakdown(gdb)
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	var total int64
	sawNoActivity := false
	for _, r := range rows {
		total += r.CustomerCount
		if r.Segment == SegmentNoActivity {
			sawNoActivity = true
			assert.Equal(t, int64(1), r.CustomerCount)
		}
	}
	assert.Equal(t, int64(4), total)
	assert.True(t, sawNoActivity, "the No Activity bucket must be reported")
}
