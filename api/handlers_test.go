package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
	"taskboard-api/query"
	"taskboard-api/storage"
)

type stubTasks struct {
	tasks        []domain.Task
	task         domain.Task
	err          error
	lastFilter   domain.TaskFilter
	lastSubtasks []domain.Subtask
	lastProject  string
}

func (s *stubTasks) List(ctx context.Context, owner string, f domain.TaskFilter) ([]domain.Task, error) {
	s.lastFilter = f
	return s.tasks, s.err
}

func (s *stubTasks) Get(ctx context.Context, owner, id string) (domain.Task, error) {
	return s.task, s.err
}

func (s *stubTasks) Today(ctx context.Context, owner string) ([]domain.Task, error) {
	return s.tasks, s.err
}

func (s *stubTasks) Upcoming(ctx context.Context, owner string, days int) ([]domain.Task, error) {
	return s.tasks, s.err
}

func (s *stubTasks) Overdue(ctx context.Context, owner string) ([]domain.Task, error) {
	return s.tasks, s.err
}

func (s *stubTasks) ForProject(ctx context.Context, owner, projectID string) ([]domain.Task, error) {
	s.lastProject = projectID
	return s.tasks, s.err
}

func (s *stubTasks) Create(ctx context.Context, owner string, t domain.Task) (domain.Task, error) {
	if s.err != nil {
		return domain.Task{}, s.err
	}
	return t, nil
}

func (s *stubTasks) Update(ctx context.Context, owner, id string, upd domain.TaskUpdate) (domain.Task, error) {
	return s.task, s.err
}

func (s *stubTasks) SetSubtasks(ctx context.Context, owner, id string, subtasks []domain.Subtask) (domain.Task, error) {
	s.lastSubtasks = subtasks
	return s.task, s.err
}

func (s *stubTasks) Delete(ctx context.Context, owner, id string) (domain.Task, error) {
	return s.task, s.err
}

type stubSettings struct {
	settings domain.Settings
	err      error
}

func (s *stubSettings) Get(ctx context.Context, owner string) (domain.Settings, error) {
	return s.settings, s.err
}

func (s *stubSettings) Put(ctx context.Context, owner string, settings domain.Settings) (domain.Settings, error) {
	if s.err != nil {
		return domain.Settings{}, s.err
	}
	s.settings = settings
	return settings, nil
}

type stubSessions struct {
	enqueued []string
	err      error
}

func (s *stubSessions) EnqueueSessionJob(ctx context.Context, userID string) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, userID)
	return nil
}

type stubAuth struct{}

func (stubAuth) UserIDFromAuthHeader(string) (string, error) { return "user", nil }

type failingAuth struct{}

func (failingAuth) UserIDFromAuthHeader(string) (string, error) {
	return "", errMissingAuthorization
}

func newRequest(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestGetTasksForwardsFilter(t *testing.T) {
	tasks := &stubTasks{tasks: []domain.Task{{ID: "t1", Title: "write report"}}}
	c, rec := newRequest(t, http.MethodGet, "/api/tasks?status=in_progress&priority=high&projectId=p1", "")

	if err := getTasks(tasks, stubAuth{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	want := domain.TaskFilter{Status: domain.StatusInProgress, Priority: domain.PriorityHigh, ProjectID: "p1"}
	if tasks.lastFilter != want {
		t.Fatalf("filter = %+v, want %+v", tasks.lastFilter, want)
	}

	var list []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(list) != 1 || list[0].ID != "t1" {
		t.Fatalf("unexpected tasks: %#v", list)
	}
}

func TestGetTasksRejectsUnknownStatus(t *testing.T) {
	tasks := &stubTasks{}
	c, rec := newRequest(t, http.MethodGet, "/api/tasks?status=bogus", "")

	if err := getTasks(tasks, stubAuth{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestGetTasksUnauthorized(t *testing.T) {
	c, rec := newRequest(t, http.MethodGet, "/api/tasks", "")

	if err := getTasks(&stubTasks{}, failingAuth{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
}

func TestPostTaskCreated(t *testing.T) {
	tasks := &stubTasks{}
	c, rec := newRequest(t, http.MethodPost, "/api/tasks", `{"title":"write report","priority":"high"}`)

	if err := postTask(tasks, stubAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
}

func TestPostTaskValidationFailure(t *testing.T) {
	tasks := &stubTasks{err: query.ValidationError("title is required")}
	c, rec := newRequest(t, http.MethodPost, "/api/tasks", `{"priority":"high"}`)

	if err := postTask(tasks, stubAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "title is required") {
		t.Fatalf("expected validation message in body, got %q", rec.Body.String())
	}
}

func TestPostTaskRejectsUnknownFields(t *testing.T) {
	tasks := &stubTasks{}
	c, rec := newRequest(t, http.MethodPost, "/api/tasks", `{"title":"x","bogus":1}`)

	if err := postTask(tasks, stubAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	tasks := &stubTasks{err: storage.ErrNotFound}
	c, rec := newRequest(t, http.MethodGet, "/api/tasks/missing", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	if err := getTask(tasks, stubAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestGetTaskStorageFailure(t *testing.T) {
	tasks := &stubTasks{err: errors.New("table offline")}
	c, rec := newRequest(t, http.MethodGet, "/api/tasks/t1", "")
	c.SetParamNames("id")
	c.SetParamValues("t1")

	if err := getTask(tasks, stubAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
}

func TestPutSubtasksForwardsBody(t *testing.T) {
	tasks := &stubTasks{}
	c, rec := newRequest(t, http.MethodPut, "/api/tasks/t1/subtasks", `[{"id":"s1","title":"step one","completed":true}]`)
	c.SetParamNames("id")
	c.SetParamValues("t1")

	if err := putSubtasks(tasks, stubAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if len(tasks.lastSubtasks) != 1 || tasks.lastSubtasks[0].ID != "s1" {
		t.Fatalf("unexpected subtasks: %#v", tasks.lastSubtasks)
	}
}

func TestPutSettingsRoundTrip(t *testing.T) {
	settings := &stubSettings{settings: domain.DefaultSettings()}
	c, rec := newRequest(t, http.MethodPut, "/api/settings",
		`{"theme":"dark","aiEnabled":false,"collaborationEnabled":false,"advancedStatus":false,"remindersEnabled":true,"overdueAlerts":true,"defaultView":"calendar"}`)

	if err := putSettings(settings, stubAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	var s domain.Settings
	if err := sonic.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if s.Theme != "dark" || s.DefaultView != "calendar" || s.AdvancedStatus {
		t.Fatalf("unexpected settings: %#v", s)
	}
}

func TestPostSessionAcceptsDespiteEnqueueFailure(t *testing.T) {
	sessions := &stubSessions{err: errors.New("queue offline")}
	c, rec := newRequest(t, http.MethodPost, "/api/session", "")

	if err := postSession(sessions, stubAuth{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 got %d", rec.Code)
	}
}

func TestPostSessionEnqueues(t *testing.T) {
	sessions := &stubSessions{}
	c, rec := newRequest(t, http.MethodPost, "/api/session", "")

	if err := postSession(sessions, stubAuth{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 got %d", rec.Code)
	}
	if len(sessions.enqueued) != 1 || sessions.enqueued[0] != "user" {
		t.Fatalf("enqueued = %v, want [user]", sessions.enqueued)
	}
}
