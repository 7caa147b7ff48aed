package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
	"taskboard-api/query"
	"taskboard-api/storage"
)

const maxBodySize = 1 << 20

// Services groups the data-access surfaces the handlers depend on.
type Services struct {
	Tasks         TaskService
	Projects      ProjectService
	Notifications NotificationService
	Settings      SettingsService
	Views         ViewService
	Sessions      SessionEnqueuer
	Summaries     SummaryProducer
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Services, auth Authenticator, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(svc.Tasks, auth, logger))
	e.GET("/api/tasks/today", getTasksToday(svc.Tasks, auth))
	e.GET("/api/tasks/upcoming", getTasksUpcoming(svc.Tasks, auth))
	e.GET("/api/tasks/overdue", getTasksOverdue(svc.Tasks, auth))
	e.GET("/api/tasks/:id", getTask(svc.Tasks, auth))
	e.POST("/api/tasks", postTask(svc.Tasks, auth))
	e.PATCH("/api/tasks/:id", patchTask(svc.Tasks, auth))
	e.PUT("/api/tasks/:id/subtasks", putSubtasks(svc.Tasks, auth))
	e.DELETE("/api/tasks/:id", deleteTask(svc.Tasks, auth))

	e.GET("/api/projects", getProjects(svc.Projects, auth))
	e.GET("/api/projects/:id", getProject(svc.Projects, auth))
	e.GET("/api/projects/:id/tasks", getProjectTasks(svc.Tasks, auth))
	e.POST("/api/projects", postProject(svc.Projects, auth))
	e.PATCH("/api/projects/:id", patchProject(svc.Projects, auth))
	e.DELETE("/api/projects/:id", deleteProject(svc.Projects, auth))

	e.GET("/api/notifications", getNotifications(svc.Notifications, auth))
	e.POST("/api/notifications/summary", postSummary(svc.Summaries, auth))
	e.POST("/api/notifications/:id/read", postNotificationRead(svc.Notifications, auth))
	e.DELETE("/api/notifications/:id", deleteNotification(svc.Notifications, auth))

	e.GET("/api/settings", getSettings(svc.Settings, auth))
	e.PUT("/api/settings", putSettings(svc.Settings, auth))

	e.GET("/api/dashboard", getDashboard(svc.Views, auth, logger))
	e.GET("/api/analytics", getAnalytics(svc.Views, auth))
	e.GET("/api/calendar", getCalendar(svc.Views, auth))

	e.POST("/api/session", postSession(svc.Sessions, auth, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// authorize resolves the caller or writes a 401. The returned bool
// reports whether the request may proceed.
func authorize(c echo.Context, auth Authenticator) (string, bool) {
	userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		_ = c.String(http.StatusUnauthorized, err.Error())
		return "", false
	}
	return userID, true
}

// respondError maps service errors onto HTTP statuses. Validation
// failures become 400, unknown entities 404, everything else a logged
// 500.
func respondError(c echo.Context, err error) error {
	var verr query.ValidationError
	if errors.As(err, &verr) {
		return c.String(http.StatusBadRequest, verr.Error())
	}
	if errors.Is(err, storage.ErrNotFound) {
		return c.String(http.StatusNotFound, "not found")
	}
	c.Logger().Error(err)
	return c.String(http.StatusInternalServerError, "internal error")
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func taskFilterFromQuery(c echo.Context) (domain.TaskFilter, error) {
	var f domain.TaskFilter
	if raw := c.QueryParam("status"); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			return f, query.ValidationError("unknown status filter")
		}
		f.Status = status
	}
	if raw := c.QueryParam("priority"); raw != "" {
		priority := domain.Priority(raw)
		if !priority.Valid() {
			return f, query.ValidationError("unknown priority filter")
		}
		f.Priority = priority
	}
	f.ProjectID = c.QueryParam("projectId")
	return f, nil
}

func getTasks(tasks TaskService, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newRequestMetrics(logger, "/api/tasks")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		filter, filterErr := taskFilterFromQuery(c)
		if filterErr != nil {
			metrics.SetErrorStage("invalid_filter")
			err = c.String(http.StatusBadRequest, filterErr.Error())
			return err
		}

		fetchStart := time.Now()
		list, fetchErr := tasks.List(c.Request().Context(), userID, filter)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			err = respondError(c, fetchErr)
			return err
		}
		metrics.SetItemsReturned(len(list))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, list)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getTasksToday(tasks TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		list, err := tasks.Today(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func getTasksUpcoming(tasks TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		days := 7
		if raw := c.QueryParam("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return c.String(http.StatusBadRequest, "invalid days")
			}
			days = n
		}
		list, err := tasks.Upcoming(c.Request().Context(), userID, days)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func getTasksOverdue(tasks TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		list, err := tasks.Overdue(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func getTask(tasks TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		task, err := tasks.Get(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func postTask(tasks TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		var t domain.Task
		if err := decodeBody(c, &t); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		created, err := tasks.Create(c.Request().Context(), userID, t)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func patchTask(tasks TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		var upd domain.TaskUpdate
		if err := decodeBody(c, &upd); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := tasks.Update(c.Request().Context(), userID, c.Param("id"), upd)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func putSubtasks(tasks TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		var subtasks []domain.Subtask
		if err := decodeBody(c, &subtasks); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := tasks.SetSubtasks(c.Request().Context(), userID, c.Param("id"), subtasks)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(tasks TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		if _, err := tasks.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getProjects(projects ProjectService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		list, err := projects.List(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func getProject(projects ProjectService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		project, err := projects.Get(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, project)
	}
}

func getProjectTasks(tasks TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		list, err := tasks.ForProject(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func postProject(projects ProjectService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		var p domain.Project
		if err := decodeBody(c, &p); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		created, err := projects.Create(c.Request().Context(), userID, p)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func patchProject(projects ProjectService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		var upd domain.ProjectUpdate
		if err := decodeBody(c, &upd); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		project, err := projects.Update(c.Request().Context(), userID, c.Param("id"), upd)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, project)
	}
}

func deleteProject(projects ProjectService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		if _, err := projects.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getNotifications(notifications NotificationService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		unreadOnly, _ := strconv.ParseBool(c.QueryParam("unread"))
		list, err := notifications.List(c.Request().Context(), userID, unreadOnly)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func postSummary(summaries SummaryProducer, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		n, err := summaries.Summary(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, n)
	}
}

func postNotificationRead(notifications NotificationService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		if err := notifications.MarkRead(c.Request().Context(), userID, c.Param("id")); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteNotification(notifications NotificationService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		if err := notifications.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getSettings(settings SettingsService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		s, err := settings.Get(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, s)
	}
}

func putSettings(settings SettingsService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		var s domain.Settings
		if err := decodeBody(c, &s); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		saved, err := settings.Put(c.Request().Context(), userID, s)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, saved)
	}
}

func getDashboard(views ViewService, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newRequestMetrics(logger, "/api/dashboard")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		dashboard, fetchErr := views.Dashboard(c.Request().Context(), userID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			err = respondError(c, fetchErr)
			return err
		}

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, dashboard)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getAnalytics(views ViewService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		analytics, err := views.Analytics(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, analytics)
	}
}

func getCalendar(views ViewService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		calendar, err := views.Calendar(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, calendar)
	}
}

// postSession queues a notification generation run for the caller.
// Generation is best effort, so enqueue failures are logged and the
// session start still succeeds.
func postSession(sessions SessionEnqueuer, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := authorize(c, auth)
		if !ok {
			return nil
		}
		if err := sessions.EnqueueSessionJob(c.Request().Context(), userID); err != nil {
			logger.WithFields(log.Fields{"user": userID, "error": err.Error()}).
				Warn("session job enqueue failed")
		}
		return c.NoContent(http.StatusAccepted)
	}
}
