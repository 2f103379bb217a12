package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/matthewbaird/formengine/internal/activity"
	"github.com/matthewbaird/formengine/internal/choices"
	"github.com/matthewbaird/formengine/internal/definition"
	"github.com/matthewbaird/formengine/internal/event"
	"github.com/matthewbaird/formengine/internal/eventbus"
	"github.com/matthewbaird/formengine/internal/server"
	"github.com/matthewbaird/formengine/internal/session"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := os.Getenv("FORM_DEF")
	if path == "" {
		path = "forms/registration.cue"
	}
	def, err := definition.LoadFile(path)
	if err != nil {
		log.Fatalf("loading form definition: %v", err)
	}
	log.Printf("loaded form %q from %s (%d fields)", def.Name, path, len(def.Fields))

	var store activity.Store = activity.NewMemoryStore()
	lists := def.Choices
	if dsn := os.Getenv("CHOICES_DB"); dsn != "" {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			log.Fatalf("opening database: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(1)

		src := choices.NewSQLSource(db)
		if err := src.Migrate(ctx); err != nil {
			log.Fatalf("migrating choices: %v", err)
		}
		sqlStore := activity.NewSQLStore(db)
		if err := sqlStore.Migrate(ctx); err != nil {
			log.Fatalf("migrating activity: %v", err)
		}
		store = sqlStore
		log.Println("database migrated successfully")

		lists, err = choices.Merge(ctx, choices.NewMemorySource(def.Choices), src)
		if err != nil {
			log.Fatalf("loading choices: %v", err)
		}
	}

	port := 8080
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	maxAge := envDuration("SESSION_MAX_AGE", 24*time.Hour)
	idle := envDuration("SESSION_IDLE", 30*time.Minute)

	bus := eventbus.New(1024)
	bus.Subscribe("log", eventbus.NewLogConsumer())
	bus.Start(ctx)
	defer bus.Stop()

	recorder := event.NewActivityRecorder(store)
	recorder.SetPublisher(bus)

	sessions := session.NewManager(maxAge, idle)
	sessions.SetRecorder(recorder)
	defer sessions.Close()
	go cleanupLoop(ctx, sessions, time.Minute)

	if err := server.Run(ctx, server.Config{
		Port:       port,
		Definition: def,
		Choices:    lists,
		Sessions:   sessions,
		Bus:        bus,
		Activity:   store,
	}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("ignoring %s=%q: %v", key, v, err)
		return def
	}
	return d
}

func cleanupLoop(ctx context.Context, sessions *session.Manager, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if n := sessions.Cleanup(); n > 0 {
				log.Printf("session: removed %d expired sessions", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
