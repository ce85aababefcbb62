package series

import (
	"sort"
	"time"

	"greenhouse/internal/models"
)

// Merge outer-joins temperature and moisture on date, sorts ascending and fills
// gaps forward then backward in each column. Returns nil when there is no
// temperature at all, since an observation cannot exist without one.
func Merge(temperature, moisture []Point) []models.Observation {
	if len(temperature) == 0 {
		return nil
	}

	type row struct {
		temp     *float64
		moisture *float64
	}
	rows := make(map[time.Time]*row)
	get := func(d time.Time) *row {
		r, ok := rows[d]
		if !ok {
			r = &row{}
			rows[d] = r
		}
		return r
	}
	for _, p := range temperature {
		v := p.Value
		get(p.Date).temp = &v
	}
	for _, p := range moisture {
		v := p.Value
		get(p.Date).moisture = &v
	}

	dates := make([]time.Time, 0, len(rows))
	for d := range rows {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	temps := make([]*float64, len(dates))
	moist := make([]*float64, len(dates))
	for i, d := range dates {
		temps[i] = rows[d].temp
		moist[i] = rows[d].moisture
	}
	fill(temps)
	fill(moist)

	out := make([]models.Observation, len(dates))
	for i, d := range dates {
		out[i] = models.Observation{Date: d, Temperature: *temps[i], SoilMoisture: moist[i]}
	}
	return out
}

// fill does a forward fill followed by a backward fill; an all-nil column stays nil
func fill(col []*float64) {
	var last *float64
	for i := range col {
		if col[i] != nil {
			last = col[i]
		} else if last != nil {
			v := *last
			col[i] = &v
		}
	}
	var next *float64
	for i := len(col) - 1; i >= 0; i-- {
		if col[i] != nil {
			next = col[i]
		} else if next != nil {
			v := *next
			col[i] = &v
		}
	}
}
