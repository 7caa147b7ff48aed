package domain

import "time"

// DailyPoint is one day in the completion/creation trend.
type DailyPoint struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
	Created   int    `json:"created"`
}

// WeeklyPoint is one week in the completion trend.
type WeeklyPoint struct {
	WeekStart string `json:"weekStart"`
	Completed int    `json:"completed"`
}

// WorkloadDay is the due-task count per priority for one upcoming day.
type WorkloadDay struct {
	Date       string           `json:"date"`
	ByPriority map[Priority]int `json:"byPriority"`
}

// ProjectProgress is the completion percentage of one project's tasks.
type ProjectProgress struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Percent   int    `json:"percent"`
}

const dayKeyFormat = "2006-01-02"

// DailyTrend buckets completions and creations into the trailing days
// window, oldest first, today last.
func DailyTrend(tasks []Task, now time.Time, days int) []DailyPoint {
	points := make([]DailyPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		day := StartOfDay(now).AddDate(0, 0, i-days+1)
		key := day.Format(dayKeyFormat)
		points[i] = DailyPoint{Date: key}
		index[key] = i
	}
	for _, t := range tasks {
		if t.Status == StatusDone {
			if i, ok := index[t.UpdatedAt.Format(dayKeyFormat)]; ok {
				points[i].Completed++
			}
		}
		if i, ok := index[t.CreatedAt.Format(dayKeyFormat)]; ok {
			points[i].Created++
		}
	}
	return points
}

// WeeklyTrend buckets completions into the trailing weeks, oldest
// first, the current week last. Weeks start on Monday.
func WeeklyTrend(tasks []Task, now time.Time, weeks int) []WeeklyPoint {
	points := make([]WeeklyPoint, weeks)
	index := make(map[string]int, weeks)
	for i := 0; i < weeks; i++ {
		start := StartOfWeek(now).AddDate(0, 0, 7*(i-weeks+1))
		key := start.Format(dayKeyFormat)
		points[i] = WeeklyPoint{WeekStart: key}
		index[key] = i
	}
	for _, t := range tasks {
		if t.Status != StatusDone {
			continue
		}
		if i, ok := index[StartOfWeek(t.UpdatedAt).Format(dayKeyFormat)]; ok {
			points[i].Completed++
		}
	}
	return points
}

// WorkloadHistogram buckets unfinished tasks by due day over the
// leading days window, today first.
func WorkloadHistogram(tasks []Task, now time.Time, days int) []WorkloadDay {
	points := make([]WorkloadDay, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		day := StartOfDay(now).AddDate(0, 0, i)
		key := day.Format(dayKeyFormat)
		points[i] = WorkloadDay{
			Date:       key,
			ByPriority: map[Priority]int{PriorityLow: 0, PriorityMedium: 0, PriorityHigh: 0},
		}
		index[key] = i
	}
	for _, t := range tasks {
		if t.Status == StatusDone {
			continue
		}
		if i, ok := index[t.DueDate.Format(dayKeyFormat)]; ok {
			points[i].ByPriority[t.Priority]++
		}
	}
	return points
}

// ProjectCompletion computes per-project completion for at most limit
// projects, in the order projects were supplied.
func ProjectCompletion(projects []Project, tasks []Task, limit int) []ProjectProgress {
	if limit > len(projects) {
		limit = len(projects)
	}
	out := make([]ProjectProgress, 0, limit)
	for _, p := range projects[:limit] {
		prog := ProjectProgress{ProjectID: p.ID, Name: p.Name}
		for _, t := range tasks {
			if t.ProjectID != p.ID {
				continue
			}
			prog.Total++
			if t.Status == StatusDone {
				prog.Completed++
			}
		}
		if prog.Total > 0 {
			prog.Percent = roundPercent(prog.Completed, prog.Total)
		}
		out = append(out, prog)
	}
	return out
}
