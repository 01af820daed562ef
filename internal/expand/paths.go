package expand

import (
	"time"

	"github.com/hurou927/hydro-catalog/internal/catalog"
)

// Paths expands the entry path template over the request time range.
// Hourly, daily and monthly entries step from start toward end (exclusive),
// or take one step when no end is given. Each step advances from the
// previous one, so monthly steps from the 31st settle on the clamped day. Every other period, and a request
// without a start time, yields a single path. Duplicates are dropped and
// the order of first appearance is kept.
func Paths(entry *catalog.Row, req Request) ([]string, error) {
	template := entry.String("path")
	period := entry.String("period")

	if req.Start == nil || !stepped(period) {
		p, err := Substitute(template, Placeholders(entry, req, req.Start))
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	}

	start := *req.Start
	end := next(period, start)
	if req.End != nil {
		end = *req.End
	}

	var paths []string
	seen := make(map[string]bool)
	for t := start; t.Before(end); t = next(period, t) {
		p, err := Substitute(template, Placeholders(entry, req, &t))
		if err != nil {
			return nil, err
		}
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func stepped(period string) bool {
	switch period {
	case "hourly", "daily", "monthly":
		return true
	}
	return false
}

// next returns the time step after t.
func next(period string, t time.Time) time.Time {
	switch period {
	case "hourly":
		return t.Add(time.Hour)
	case "monthly":
		return AddMonths(t, 1)
	}
	return t.AddDate(0, 0, 1)
}

// steps returns n consecutive time steps of period beginning at start.
func steps(period string, start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	t := start
	for i := range out {
		out[i] = t
		t = next(period, t)
	}
	return out
}

// AddMonths adds n calendar months to t, clamping the day to the last day
// of the target month.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// TimeValues returns one "2006-01-02" date per day starting at start.
func TimeValues(start time.Time, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i).Format("2006-01-02")
	}
	return out
}

// StepValues labels n steps of period starting at start. Hourly labels
// carry the time of day; weekly steps are seven days apart.
func StepValues(period string, start time.Time, n int) []string {
	switch period {
	case "hourly":
		out := make([]string, n)
		for i, t := range steps(period, start, n) {
			out[i] = t.Format("2006-01-02 15:04:05")
		}
		return out
	case "weekly":
		out := make([]string, n)
		for i := range out {
			out[i] = start.AddDate(0, 0, 7*i).Format("2006-01-02")
		}
		return out
	case "monthly":
		out := make([]string, n)
		for i, t := range steps(period, start, n) {
			out[i] = t.Format("2006-01-02")
		}
		return out
	}
	return TimeValues(start, n)
}
