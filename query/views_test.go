package query

import (
	"context"
	"testing"
	"time"

	"taskboard-api/cache"
	"taskboard-api/domain"
)

func newTestViews(store *fakeStore) (*Views, *Tasks, *cache.Cache) {
	c := cache.New()
	tasks := NewTasks(store, c, NewSettings(store, c, testLogger()), testLogger())
	projects := NewProjects(store, c, testLogger())
	return NewViews(tasks, projects, c), tasks, c
}

func TestDashboardReflectsMutationBeforeNextRead(t *testing.T) {
	store := newFakeStore()
	views, tasks, _ := newTestViews(store)
	ctx := context.Background()

	if _, err := tasks.Create(ctx, "u1", domain.Task{Title: "a", DueDate: dueIn(time.Hour), Priority: domain.PriorityHigh}); err != nil {
		t.Fatalf("create: %v", err)
	}
	d, err := views.Dashboard(ctx, "u1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.ActiveTasks != 1 {
		t.Fatalf("ActiveTasks = %d, want 1", d.ActiveTasks)
	}

	if _, err := tasks.Create(ctx, "u1", domain.Task{Title: "b", DueDate: dueIn(time.Hour), Priority: domain.PriorityHigh}); err != nil {
		t.Fatalf("create: %v", err)
	}
	d, err = views.Dashboard(ctx, "u1")
	if err != nil {
		t.Fatalf("dashboard after mutation: %v", err)
	}
	if d.ActiveTasks != 2 {
		t.Fatalf("dashboard served stale aggregate: ActiveTasks = %d, want 2", d.ActiveTasks)
	}
}

func TestDashboardPriorityScenario(t *testing.T) {
	store := newFakeStore()
	views, tasks, _ := newTestViews(store)
	ctx := context.Background()

	for _, p := range []domain.Priority{domain.PriorityHigh, domain.PriorityMedium, domain.PriorityHigh} {
		if _, err := tasks.Create(ctx, "u1", domain.Task{Title: "t", DueDate: dueIn(time.Hour), Priority: p}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	d, err := views.Dashboard(ctx, "u1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.ByPriority[domain.PriorityHigh] != 2 || d.ByPriority[domain.PriorityMedium] != 1 || d.ByPriority[domain.PriorityLow] != 0 {
		t.Fatalf("unexpected byPriority: %#v", d.ByPriority)
	}
	if d.ActiveTasks != 3 {
		t.Fatalf("ActiveTasks = %d, want 3", d.ActiveTasks)
	}
	if d.FocusScore != 0 {
		t.Fatalf("FocusScore = %d, want 0", d.FocusScore)
	}
}

func TestAnalyticsShape(t *testing.T) {
	store := newFakeStore()
	views, tasks, _ := newTestViews(store)
	ctx := context.Background()

	if _, err := tasks.Create(ctx, "u1", domain.Task{Title: "t", DueDate: dueIn(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	a, err := views.Analytics(ctx, "u1")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(a.DailyTrend) != 7 || len(a.WeeklyTrend) != 4 || len(a.Workload) != 7 {
		t.Fatalf("unexpected aggregate windows: %d/%d/%d", len(a.DailyTrend), len(a.WeeklyTrend), len(a.Workload))
	}
	if len(a.Upcoming) == 0 {
		t.Fatal("expected the new task among upcoming deadlines")
	}
}

func TestCalendarBucketsTasks(t *testing.T) {
	store := newFakeStore()
	views, tasks, _ := newTestViews(store)
	ctx := context.Background()

	due := time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC)
	if _, err := tasks.Create(ctx, "u1", domain.Task{Title: "t", DueDate: due}); err != nil {
		t.Fatalf("create: %v", err)
	}
	buckets, err := views.Calendar(ctx, "u1")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(buckets["2025-03-12"]) != 1 {
		t.Fatalf("expected task bucketed on its due day, got %#v", buckets)
	}
}

func TestAnalyticsBucketsAgreeWithStoredTimestamps(t *testing.T) {
	store := newFakeStore()
	views, _, _ := newTestViews(store)
	ctx := context.Background()

	// Server clock in a non-UTC zone; stored instants are always UTC.
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2025, time.March, 12, 2, 0, 0, 0, loc) // 2025-03-11 21:00 UTC
	views.now = func() time.Time { return now }

	store.tasks["done"] = domain.Task{
		ID: "done", UserID: "u1", Title: "late finish",
		Status:    domain.StatusDone,
		DueDate:   time.Date(2025, time.March, 11, 23, 30, 0, 0, time.UTC),
		CreatedAt: time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, time.March, 11, 20, 30, 0, 0, time.UTC),
		Priority:  domain.PriorityMedium,
	}

	a, err := views.Analytics(ctx, "u1")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	last := a.DailyTrend[len(a.DailyTrend)-1]
	if last.Date != "2025-03-11" {
		t.Fatalf("trend anchored to %q, want the UTC day 2025-03-11", last.Date)
	}
	if last.Completed != 1 || last.Created != 1 {
		t.Fatalf("completion near midnight missed its day bucket: %+v", last)
	}
}
