package domain

import (
	"sort"
	"time"
)

// GroupByDay buckets tasks by due-date calendar day. Keys use the
// 2006-01-02 form; tasks within a day are ordered by due time.
func GroupByDay(tasks []Task) map[string][]Task {
	buckets := make(map[string][]Task)
	for _, t := range tasks {
		key := t.DueDate.Format(dayKeyFormat)
		buckets[key] = append(buckets[key], t)
	}
	for _, day := range buckets {
		sort.Slice(day, func(i, j int) bool { return day[i].DueDate.Before(day[j].DueDate) })
	}
	return buckets
}

// DeadlineLabel renders a due date relative to now: Today, Tomorrow,
// the weekday name while still inside the current week, otherwise a
// short date.
func DeadlineLabel(due, now time.Time) string {
	if SameDay(due, now) {
		return "Today"
	}
	if SameDay(due, now.AddDate(0, 0, 1)) {
		return "Tomorrow"
	}
	weekStart := StartOfWeek(now)
	if !due.Before(weekStart) && due.Before(weekStart.AddDate(0, 0, 7)) {
		return due.Weekday().String()
	}
	return due.Format("Jan 2")
}

// DeadlineBucket groups upcoming tasks under one relative label.
type DeadlineBucket struct {
	Label string `json:"label"`
	Tasks []Task `json:"tasks"`
}

// UpcomingDeadlines buckets unfinished tasks due at or after the start
// of today, ordered by due date, grouped by relative label.
func UpcomingDeadlines(tasks []Task, now time.Time) []DeadlineBucket {
	dayStart := StartOfDay(now)
	upcoming := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == StatusDone || t.DueDate.Before(dayStart) {
			continue
		}
		upcoming = append(upcoming, t)
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].DueDate.Before(upcoming[j].DueDate) })

	var out []DeadlineBucket
	for _, t := range upcoming {
		label := DeadlineLabel(t.DueDate, now)
		if n := len(out); n > 0 && out[n-1].Label == label {
			out[n-1].Tasks = append(out[n-1].Tasks, t)
			continue
		}
		out = append(out, DeadlineBucket{Label: label, Tasks: []Task{t}})
	}
	return out
}
