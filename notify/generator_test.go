package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(log.PanicLevel)
	return logger
}

type fakeTasks struct {
	tasks []domain.Task
	err   error
}

func (f *fakeTasks) List(ctx context.Context, owner string, filter domain.TaskFilter) ([]domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tasks, nil
}

type fakeNotifications struct {
	mu       sync.Mutex
	unread   []domain.Notification
	created  []domain.Notification
	failures int
}

func (f *fakeNotifications) List(ctx context.Context, owner string, unreadOnly bool) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification(nil), f.unread...), nil
}

func (f *fakeNotifications) Create(ctx context.Context, owner string, n domain.Notification) (domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return domain.Notification{}, errors.New("store unavailable")
	}
	n.ID = uuid.NewString()
	n.UserID = owner
	f.created = append(f.created, n)
	return n, nil
}

func testDeduper(t *testing.T) (*RedisDeduper, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisDeduper(client, time.Hour), srv
}

func newTestGenerator(t *testing.T, tasks *fakeTasks, notifications *fakeNotifications, now time.Time) (*Generator, *miniredis.Miniredis) {
	t.Helper()
	deduper, srv := testDeduper(t)
	gen := NewGenerator(tasks, notifications, deduper, testLogger())
	gen.now = func() time.Time { return now }
	return gen, srv
}

func TestRunCreatesReminderAndOverdue(t *testing.T) {
	now := time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)
	tasks := &fakeTasks{tasks: []domain.Task{
		{ID: "t1", Title: "ship release", DueDate: now.Add(2 * time.Hour), Status: domain.StatusInProgress},
		{ID: "t2", Title: "file report", DueDate: now.Add(-3 * time.Hour), Status: domain.StatusTodo},
		{ID: "t3", Title: "far away", DueDate: now.AddDate(0, 0, 3), Status: domain.StatusTodo},
		{ID: "t4", Title: "already done", DueDate: now.Add(-time.Hour), Status: domain.StatusDone},
	}}
	notifications := &fakeNotifications{}
	gen, _ := newTestGenerator(t, tasks, notifications, now)

	if err := gen.Run(context.Background(), "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(notifications.created) != 2 {
		t.Fatalf("created %d notifications, want 2", len(notifications.created))
	}
	byTask := map[string]domain.NotificationType{}
	for _, n := range notifications.created {
		byTask[n.TaskID] = n.Type
	}
	if byTask["t1"] != domain.NotifyReminder {
		t.Errorf("t1 type = %q, want reminder", byTask["t1"])
	}
	if byTask["t2"] != domain.NotifyOverdue {
		t.Errorf("t2 type = %q, want overdue", byTask["t2"])
	}
}

func TestRunSkipsUnreadDuplicates(t *testing.T) {
	now := time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)
	tasks := &fakeTasks{tasks: []domain.Task{
		{ID: "t1", Title: "ship release", DueDate: now.Add(2 * time.Hour), Status: domain.StatusTodo},
	}}
	notifications := &fakeNotifications{unread: []domain.Notification{
		{ID: "n1", TaskID: "t1", Type: domain.NotifyReminder, Read: false},
	}}
	gen, _ := newTestGenerator(t, tasks, notifications, now)

	if err := gen.Run(context.Background(), "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifications.created) != 0 {
		t.Fatalf("created %d notifications, want 0", len(notifications.created))
	}
}

func TestRunDeduperBlocksRepeatRuns(t *testing.T) {
	now := time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)
	tasks := &fakeTasks{tasks: []domain.Task{
		{ID: "t1", Title: "ship release", DueDate: now.Add(2 * time.Hour), Status: domain.StatusTodo},
	}}
	notifications := &fakeNotifications{}
	gen, _ := newTestGenerator(t, tasks, notifications, now)

	for i := 0; i < 3; i++ {
		if err := gen.Run(context.Background(), "user-1"); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	if len(notifications.created) != 1 {
		t.Fatalf("created %d notifications across repeat runs, want 1", len(notifications.created))
	}
}

func TestRunRollsBackDedupOnInsertFailure(t *testing.T) {
	now := time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)
	tasks := &fakeTasks{tasks: []domain.Task{
		{ID: "t1", Title: "ship release", DueDate: now.Add(2 * time.Hour), Status: domain.StatusTodo},
	}}
	notifications := &fakeNotifications{failures: 1}
	gen, srv := newTestGenerator(t, tasks, notifications, now)

	if err := gen.Run(context.Background(), "user-1"); err != nil {
		t.Fatalf("Run with failing insert: %v", err)
	}
	if len(notifications.created) != 0 {
		t.Fatalf("created %d notifications, want 0", len(notifications.created))
	}
	if srv.Exists("notify:user-1:t1:reminder") {
		t.Fatal("dedup key still present after rolled-back insert")
	}

	// The next run retries the insert now that the store is back.
	if err := gen.Run(context.Background(), "user-1"); err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if len(notifications.created) != 1 {
		t.Fatalf("created %d notifications after retry, want 1", len(notifications.created))
	}
}

func TestRunSurfacesListFailure(t *testing.T) {
	tasks := &fakeTasks{err: errors.New("table offline")}
	gen, _ := newTestGenerator(t, tasks, &fakeNotifications{}, time.Now())

	if err := gen.Run(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error when the task list is unavailable")
	}
}

func TestSummaryCountsTrailingAndLeadingWeek(t *testing.T) {
	now := time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)
	tasks := &fakeTasks{tasks: []domain.Task{
		{ID: "t1", Status: domain.StatusDone, UpdatedAt: now.AddDate(0, 0, -2)},
		{ID: "t2", Status: domain.StatusDone, UpdatedAt: now.AddDate(0, 0, -10)},
		{ID: "t3", Status: domain.StatusTodo, DueDate: now.AddDate(0, 0, 3)},
		{ID: "t4", Status: domain.StatusTodo, DueDate: now.AddDate(0, 0, 12)},
		{ID: "t5", Status: domain.StatusDone, UpdatedAt: now.AddDate(0, 0, -1), DueDate: now.AddDate(0, 0, 2)},
	}}
	notifications := &fakeNotifications{}
	gen, _ := newTestGenerator(t, tasks, notifications, now)

	n, err := gen.Summary(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if n.Type != domain.NotifySummary {
		t.Errorf("type = %q, want summary", n.Type)
	}
	want := "You completed 2 tasks in the last 7 days. 1 tasks are due in the next 7 days."
	if n.Message != want {
		t.Errorf("message = %q, want %q", n.Message, want)
	}
}
