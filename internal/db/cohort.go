package db

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

// monthStart truncates t to the first day of its calendar month in UTC.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthsBetween returns the number of whole calendar months from one
// month to another, e.g. 2024-01 to 2024-04 = 3.
func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// RunCohortsOnce recomputes the customer_cohorts table from completed
// orders: each customer is assigned to the cohort of their first
// completed-order month, with one row per distinct order month. Rows are
// upserted keyed by (customer_id, order_month) and stale rows from
// earlier runs are swept, so re-running converges.
func RunCohortsOnce(db *gorm.DB) error {
	var orders []Order
	if err := db.Where("status = ?", OrderCompleted).
		Select("customer_id", "order_date").
		Find(&orders).Error; err != nil {
		return err
	}

	type monthSet map[time.Time]struct{}
	months := make(map[uint]monthSet)
	first := make(map[uint]time.Time)
	for _, o := range orders {
		m := monthStart(o.OrderDate)
		set := months[o.CustomerID]
		if set == nil {
			set = make(monthSet)
			months[o.CustomerID] = set
		}
		set[m] = struct{}{}
		if f, ok := first[o.CustomerID]; !ok || m.Before(f) {
			first[o.CustomerID] = m
		}
	}

	runStart := time.Now().UTC()
	for customerID, set := range months {
		cohort := first[customerID]
		for orderMonth := range set {
			row := CustomerCohort{
				CustomerID:  customerID,
				OrderMonth:  orderMonth,
				CohortMonth: cohort,
				CohortIndex: monthsBetween(cohort, orderMonth),
				ComputedAt:  runStart,
			}
			var existing CustomerCohort
			err := db.Where("customer_id = ? AND order_month = ?", customerID, orderMonth).
				First(&existing).Error
			if err == gorm.ErrRecordNotFound {
				err = db.Create(&row).Error
			} else if err == nil {
				err = db.Model(&existing).Updates(map[string]interface{}{
					"cohort_month": row.CohortMonth,
					"cohort_index": row.CohortIndex,
					"computed_at":  row.ComputedAt,
				}).Error
			}
			if err != nil {
				return err
			}
		}
	}

	return db.Where("computed_at < ?", runStart).Delete(&CustomerCohort{}).Error
}

// RetentionCohort is one row of the retention matrix: the customers
// acquired in CohortMonth and how many of them came back at each
// months-since-acquisition index. Counts and Rates share indexing from
// 0 to the largest cohort index present in the data; Rates are percent
// of the cohort's size (nil when the size is 0).
type RetentionCohort struct {
	CohortMonth string     `json:"cohort_month"`
	CohortSize  int64      `json:"cohort_size"`
	Counts      []int64    `json:"counts"`
	Rates       []*float64 `json:"retention_pct"`
}

// RetentionMatrix aggregates customer_cohorts into per-cohort retention
// rows ordered by cohort month.
func RetentionMatrix(db *gorm.DB) ([]RetentionCohort, error) {
	var rows []CustomerCohort
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}

	maxIndex := 0
	counts := make(map[time.Time]map[int]int64)
	for _, r := range rows {
		byIndex := counts[r.CohortMonth]
		if byIndex == nil {
			byIndex = make(map[int]int64)
			counts[r.CohortMonth] = byIndex
		}
		// One row per (customer, order month), so counting rows counts
		// distinct customers.
		byIndex[r.CohortIndex]++
		if r.CohortIndex > maxIndex {
			maxIndex = r.CohortIndex
		}
	}

	cohorts := make([]time.Time, 0, len(counts))
	for m := range counts {
		cohorts = append(cohorts, m)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].Before(cohorts[j]) })

	out := make([]RetentionCohort, 0, len(cohorts))
	for _, m := range cohorts {
		byIndex := counts[m]
		size := byIndex[0]
		row := RetentionCohort{
			CohortMonth: m.Format("2006-01"),
			CohortSize:  size,
			Counts:      make([]int64, maxIndex+1),
			Rates:       make([]*float64, maxIndex+1),
		}
		for i := 0; i <= maxIndex; i++ {
			row.Counts[i] = byIndex[i]
			if size > 0 {
				rate := float64(byIndex[i]) / float64(size) * 100
				row.Rates[i] = &rate
			}
		}
		out = append(out, row)
	}
	return out, nil
}
