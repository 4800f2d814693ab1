package db

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

// Segment labels produced by the RFM rule chain.
const (
	SegmentChampions         = "Champions"
	SegmentLoyal             = "Loyal"
	SegmentPotentialLoyalist = "Potential Loyalist"
	SegmentAtRisk            = "At Risk"
	SegmentCantLose          = "Cant Lose"
	SegmentLost              = "Lost"
	SegmentOthers            = "Others"
	SegmentNoActivity        = "No Activity"
)

// AssignSegment maps an (r, f, m) score triple to a segment label. The
// rules are evaluated top to bottom and the first match wins, so the
// order of the chain is part of the contract.
func AssignSegment(r, f, m int) string {
	switch {
	case r >= 4 && f >= 4 && m >= 4:
		return SegmentChampions
	case r >= 3 && f >= 3 && m >= 3:
		return SegmentLoyal
	case r >= 3 && f <= 2:
		return SegmentPotentialLoyalist
	case r <= 2 && f >= 3:
		return SegmentAtRisk
	case r <= 2 && f <= 2 && m >= 3:
		return SegmentCantLose
	case r <= 2 && f <= 2:
		return SegmentLost
	default:
		return SegmentOthers
	}
}

// quintile returns the NTILE(5) bucket (1-5) for 0-based position pos in
// a ranking of n rows: buckets hold n/5 rows each and the first n%5
// buckets take one extra, so bucket sizes never differ by more than 1.
func quintile(pos, n int) int {
	base := n / 5
	rem := n % 5
	if pos < rem*(base+1) {
		return pos/(base+1) + 1
	}
	return rem + (pos-rem*(base+1))/base + 1
}

type rfmMetrics struct {
	customerID uint
	lastOrder  time.Time
	frequency  int64
	monetary   float64

	recency int
	rScore  int
	fScore  int
	mScore  int
}

// computeRFM derives one RFMScore per customer from their completed
// orders. Orders after asOf are ignored, so re-running with a fixed
// as-of time reproduces identical results. Ties within a quintile
// ranking are broken by ascending customer ID.
func computeRFM(customers []Customer, orders []Order, asOf time.Time) []RFMScore {
	byCustomer := make(map[uint]*rfmMetrics)
	for _, o := range orders {
		if o.OrderDate.After(asOf) {
			continue
		}
		m := byCustomer[o.CustomerID]
		if m == nil {
			m = &rfmMetrics{customerID: o.CustomerID}
			byCustomer[o.CustomerID] = m
		}
		m.frequency++
		m.monetary += o.TotalAmount
		if o.OrderDate.After(m.lastOrder) {
			m.lastOrder = o.OrderDate
		}
	}

	scored := make([]*rfmMetrics, 0, len(byCustomer))
	for _, m := range byCustomer {
		m.recency = int(asOf.Sub(m.lastOrder).Hours() / 24)
		scored = append(scored, m)
	}
	n := len(scored)

	// Recency is ranked descending: the stalest customers fill bucket 1,
	// the most recent land in bucket 5.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].recency != scored[j].recency {
			return scored[i].recency > scored[j].recency
		}
		return scored[i].customerID < scored[j].customerID
	})
	for i, m := range scored {
		m.rScore = quintile(i, n)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].frequency != scored[j].frequency {
			return scored[i].frequency < scored[j].frequency
		}
		return scored[i].customerID < scored[j].customerID
	})
	for i, m := range scored {
		m.fScore = quintile(i, n)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].monetary != scored[j].monetary {
			return scored[i].monetary < scored[j].monetary
		}
		return scored[i].customerID < scored[j].customerID
	})
	for i, m := range scored {
		m.mScore = quintile(i, n)
	}

	rows := make([]RFMScore, 0, len(customers))
	for _, c := range customers {
		m := byCustomer[c.ID]
		if m == nil {
			// No completed orders: keep the customer visible with an
			// explicit unscored row instead of dropping them.
			rows = append(rows, RFMScore{
				CustomerID: c.ID,
				Segment:    SegmentNoActivity,
			})
			continue
		}
		recency := m.recency
		r, f, mm := m.rScore, m.fScore, m.mScore
		rows = append(rows, RFMScore{
			CustomerID: c.ID,
			Recency:    &recency,
			Frequency:  m.frequency,
			Monetary:   m.monetary,
			RScore:     &r,
			FScore:     &f,
			MScore:     &mm,
			Segment:    AssignSegment(r, f, mm),
		})
	}
	return rows
}

// RunRFMOnce recomputes the rfm_scores table for all customers as of the
// given time. Rows are upserted keyed by customer_id and rows belonging
// to customers that no longer exist are swept afterwards, so repeated
// runs converge instead of accumulating duplicates. The computed segment
// label is also mirrored onto customers.segment.
func RunRFMOnce(db *gorm.DB, asOf time.Time) error {
	var customers []Customer
	if err := db.Select("id").Find(&customers).Error; err != nil {
		return err
	}
	var orders []Order
	if err := db.Where("status = ?", OrderCompleted).
		Select("customer_id", "order_date", "total_amount").
		Find(&orders).Error; err != nil {
		return err
	}

	runStart := time.Now().UTC()
	rows := computeRFM(customers, orders, asOf)
	for _, row := range rows {
		row.ComputedAt = runStart
		var existing RFMScore
		err := db.Where("customer_id = ?", row.CustomerID).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			err = db.Create(&row).Error
		} else if err == nil {
			err = db.Model(&existing).Updates(map[string]interface{}{
				"recency":     row.Recency,
				"frequency":   row.Frequency,
				"monetary":    row.Monetary,
				"r_score":     row.RScore,
				"f_score":     row.FScore,
				"m_score":     row.MScore,
				"segment":     row.Segment,
				"computed_at": row.ComputedAt,
			}).Error
		}
		if err != nil {
			return err
		}
		if err := db.Model(&Customer{}).Where("id = ?", row.CustomerID).
			Update("segment", row.Segment).Error; err != nil {
			return err
		}
	}

	return db.Where("computed_at < ?", runStart).Delete(&RFMScore{}).Error
}

// SegmentSummary aggregates the persisted RFM scores by segment label.
// Averages are over the segment's scored rows; the "No Activity" segment
// reports zero averages.
type SegmentSummary struct {
	Segment       string   `json:"segment"`
	CustomerCount int64    `json:"customer_count"`
	AvgRecency    float64  `json:"avg_recency"`
	AvgFrequency  float64  `json:"avg_frequency"`
	AvgMonetary   float64  `json:"avg_monetary"`
	TotalRevenue  float64  `json:"total_revenue"`
	RevenueShare  *float64 `json:"revenue_share_pct"`
}

// SegmentBreakdown reads rfm_scores and summarizes each segment,
// including the explicit "No Activity" bucket.
func SegmentBreakdown(db *gorm.DB) ([]SegmentSummary, error) {
	var scores []RFMScore
	if err := db.Find(&scores).Error; err != nil {
		return nil, err
	}

	bySegment := make(map[string]*SegmentSummary)
	var grandTotal float64
	for _, s := range scores {
		sum := bySegment[s.Segment]
		if sum == nil {
			sum = &SegmentSummary{Segment: s.Segment}
			bySegment[s.Segment] = sum
		}
		sum.CustomerCount++
		if s.Recency != nil {
			sum.AvgRecency += float64(*s.Recency)
		}
		sum.AvgFrequency += float64(s.Frequency)
		sum.AvgMonetary += s.Monetary
		sum.TotalRevenue += s.Monetary
		grandTotal += s.Monetary
	}

	out := make([]SegmentSummary, 0, len(bySegment))
	for _, sum := range bySegment {
		if sum.CustomerCount > 0 {
			sum.AvgRecency /= float64(sum.CustomerCount)
			sum.AvgFrequency /= float64(sum.CustomerCount)
			sum.AvgMonetary /= float64(sum.CustomerCount)
		}
		if grandTotal > 0 {
			share := sum.TotalRevenue / grandTotal * 100
			sum.RevenueShare = &share
		}
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalRevenue > out[j].TotalRevenue })
	return out, nil
}
