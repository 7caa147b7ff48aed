package query

import (
	"context"
	"time"

	"github.com/bytedance/sonic"

	"taskboard-api/cache"
	"taskboard-api/domain"
)

// Analytics bundles the aggregate views served together.
type Analytics struct {
	DailyTrend  []domain.DailyPoint      `json:"dailyTrend"`
	WeeklyTrend []domain.WeeklyPoint     `json:"weeklyTrend"`
	Workload    []domain.WorkloadDay     `json:"workload"`
	Projects    []domain.ProjectProgress `json:"projects"`
	Upcoming    []domain.DeadlineBucket  `json:"upcomingDeadlines"`
}

const (
	trendDays    = 7
	trendWeeks   = 4
	workloadDays = 7
	topProjects  = 5
)

// Views computes dashboard and analytics aggregates over the cached
// task and project collections. Both live under the dashboard key
// prefix so every task or project mutation invalidates them.
type Views struct {
	tasks    *Tasks
	projects *Projects
	cache    *cache.Cache
	now      func() time.Time
}

// NewViews creates the aggregate-view surface.
func NewViews(tasks *Tasks, projects *Projects, c *cache.Cache) *Views {
	return &Views{tasks: tasks, projects: projects, cache: c, now: time.Now}
}

func dashboardKey(owner string) cache.Key {
	return cache.NewKey("dashboard", owner, nil)
}

func analyticsKey(owner string) cache.Key {
	return cache.NewKey("dashboard", owner, map[string]string{"view": "analytics"})
}

// Dashboard returns the owner's dashboard aggregate.
func (v *Views) Dashboard(ctx context.Context, owner string) (domain.Dashboard, error) {
	payload, err := v.cache.Fetch(ctx, dashboardKey(owner), defaultViewTTL, func(ctx context.Context) ([]byte, error) {
		tasks, err := v.tasks.List(ctx, owner, domain.TaskFilter{})
		if err != nil {
			return nil, err
		}
		// Stored timestamps decode as UTC; the aggregate clock must
		// match or day buckets shift on non-UTC hosts.
		return sonic.Marshal(domain.ComputeDashboard(tasks, v.now().UTC()))
	})
	if err != nil {
		return domain.Dashboard{}, err
	}
	var d domain.Dashboard
	if err := sonic.Unmarshal(payload, &d); err != nil {
		return domain.Dashboard{}, err
	}
	return d, nil
}

// Analytics returns the owner's trend and workload aggregates.
func (v *Views) Analytics(ctx context.Context, owner string) (Analytics, error) {
	payload, err := v.cache.Fetch(ctx, analyticsKey(owner), defaultViewTTL, func(ctx context.Context) ([]byte, error) {
		tasks, err := v.tasks.List(ctx, owner, domain.TaskFilter{})
		if err != nil {
			return nil, err
		}
		projects, err := v.projects.List(ctx, owner)
		if err != nil {
			return nil, err
		}
		now := v.now().UTC()
		return sonic.Marshal(Analytics{
			DailyTrend:  domain.DailyTrend(tasks, now, trendDays),
			WeeklyTrend: domain.WeeklyTrend(tasks, now, trendWeeks),
			Workload:    domain.WorkloadHistogram(tasks, now, workloadDays),
			Projects:    domain.ProjectCompletion(projects, tasks, topProjects),
			Upcoming:    domain.UpcomingDeadlines(tasks, now),
		})
	})
	if err != nil {
		return Analytics{}, err
	}
	var a Analytics
	if err := sonic.Unmarshal(payload, &a); err != nil {
		return Analytics{}, err
	}
	return a, nil
}

// Calendar buckets the owner's tasks by due day. It is computed
// directly from the cached task list on every call.
func (v *Views) Calendar(ctx context.Context, owner string) (map[string][]domain.Task, error) {
	tasks, err := v.tasks.List(ctx, owner, domain.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return domain.GroupByDay(tasks), nil
}
