package domain

import (
	"math"
	"time"
)

// Dashboard is a single-pass aggregate over one user's tasks.
//
// ActiveTasks counts only non-done tasks. The dashboard shows the
// user's current workload, so finished work is excluded from the
// headline number; the wire name keeps the historical "totalTasks".
type Dashboard struct {
	ActiveTasks       int              `json:"totalTasks"`
	InProgress        int              `json:"inProgress"`
	CompletedThisWeek int              `json:"completedThisWeek"`
	DueToday          int              `json:"dueToday"`
	Overdue           int              `json:"overdue"`
	ByPriority        map[Priority]int `json:"byPriority"`
	ByStatus          map[Status]int   `json:"byStatus"`
	CompletionRate    int              `json:"completionRate"`
	FocusScore        int              `json:"focusScore"`
}

// ComputeDashboard aggregates tasks relative to now.
func ComputeDashboard(tasks []Task, now time.Time) Dashboard {
	d := Dashboard{
		ByPriority: map[Priority]int{PriorityLow: 0, PriorityMedium: 0, PriorityHigh: 0},
		ByStatus:   map[Status]int{StatusTodo: 0, StatusInProgress: 0, StatusDone: 0, StatusPostponed: 0},
	}
	weekStart := StartOfWeek(now)
	for _, t := range tasks {
		d.ByPriority[t.Priority]++
		d.ByStatus[t.Status]++
		if t.Status != StatusDone {
			d.ActiveTasks++
		}
		if t.Status == StatusInProgress {
			d.InProgress++
		}
		if t.Status == StatusDone && !t.UpdatedAt.Before(weekStart) && t.UpdatedAt.Before(weekStart.AddDate(0, 0, 7)) {
			d.CompletedThisWeek++
		}
		if SameDay(t.DueDate, now) {
			d.DueToday++
		}
		if IsOverdue(t, now) {
			d.Overdue++
		}
	}
	d.CompletionRate = CompletionRate(tasks)
	d.FocusScore = FocusScore(tasks)
	return d
}

// IsOverdue reports whether t is past due and not finished.
func IsOverdue(t Task, now time.Time) bool {
	return t.DueDate.Before(now) && t.Status != StatusDone
}

// CompletionRate returns the done share of tasks as a rounded
// percentage, 0 for an empty set.
func CompletionRate(tasks []Task) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Status == StatusDone {
			done++
		}
	}
	return roundPercent(done, len(tasks))
}

// FocusScore returns the done share of high-priority tasks as a rounded
// percentage. No high-priority work at all scores 100: nothing urgent
// is outstanding.
func FocusScore(tasks []Task) int {
	total, done := 0, 0
	for _, t := range tasks {
		if t.Priority != PriorityHigh {
			continue
		}
		total++
		if t.Status == StatusDone {
			done++
		}
	}
	if total == 0 {
		return 100
	}
	return roundPercent(done, total)
}

func roundPercent(part, whole int) int {
	return int(math.Round(100 * float64(part) / float64(whole)))
}
