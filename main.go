package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/api"
	"taskboard-api/cache"
	"taskboard-api/notify"
	"taskboard-api/query"
	"taskboard-api/storage"
)

const defaultSnapshotInterval = 5 * time.Minute

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tables := storage.Tables{
		Tasks:         os.Getenv("TASKS_TABLE"),
		Projects:      os.Getenv("PROJECTS_TABLE"),
		Notifications: os.Getenv("NOTIFICATIONS_TABLE"),
		Settings:      os.Getenv("SETTINGS_TABLE"),
	}
	sessionQueueName := os.Getenv("SESSION_QUEUE")
	if connStr == "" || tables.Tasks == "" || tables.Projects == "" ||
		tables.Notifications == "" || tables.Settings == "" || sessionQueueName == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, tables, sessionQueueName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisOptions(redisConn))

	dedupTTL := 24 * time.Hour
	if v := os.Getenv("DEDUPER_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid DEDUPER_TTL: %v", err)
		}
		dedupTTL = d
	}

	snapshotInterval := defaultSnapshotInterval
	if v := os.Getenv("SNAPSHOT_SAVE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SNAPSHOT_SAVE_INTERVAL: %v", err)
		}
		snapshotInterval = d
	}

	logger := log.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queryCache := cache.New()
	persister := cache.NewPersister(rc, "", 0)
	if err := persister.Load(ctx, queryCache); err != nil {
		logger.WithField("error", err.Error()).Warn("cache snapshot load failed; starting cold")
	}

	settings := query.NewSettings(store, queryCache, logger)
	tasks := query.NewTasks(store, queryCache, settings, logger)
	projects := query.NewProjects(store, queryCache, logger)
	notifications := query.NewNotifications(store, queryCache, logger)
	views := query.NewViews(tasks, projects, queryCache)

	deduper := notify.NewRedisDeduper(rc, dedupTTL)
	generator := notify.NewGenerator(tasks, notifications, deduper, logger)
	worker := notify.NewWorker(store, generator, logger)
	go worker.Run(ctx)

	go snapshotLoop(ctx, persister, queryCache, snapshotInterval, logger)

	testMode := os.Getenv("AUTH0_TEST_MODE") == "1"
	var auth *api.Auth
	if testMode {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		domain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || domain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, api.Services{
		Tasks:         tasks,
		Projects:      projects,
		Notifications: notifications,
		Settings:      settings,
		Views:         views,
		Sessions:      store,
		Summaries:     generator,
	}, auth, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	go func() {
		if err := e.Start(listenAddr); err != nil && err != http.ErrServerClosed {
			logger.WithField("error", err.Error()).Fatal("server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err.Error()).Warn("server shutdown failed")
	}
	if err := persister.Save(shutdownCtx, queryCache); err != nil {
		logger.WithField("error", err.Error()).Warn("cache snapshot save failed")
	}
}

// parseRedisOptions accepts either a redis URL or the comma-separated
// "host:port,password=...,ssl=true" form used by hosted caches.
func parseRedisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

// snapshotLoop periodically writes the cache snapshot so a restart
// within the snapshot window can warm-start.
func snapshotLoop(ctx context.Context, p *cache.Persister, c *cache.Cache, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Save(ctx, c); err != nil {
				logger.WithField("error", err.Error()).Warn("cache snapshot save failed")
			}
		}
	}
}
