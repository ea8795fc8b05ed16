package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/config"
	"github.com/mbolis/quick-apply/database"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/notify"
	"github.com/mbolis/quick-apply/routes"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := log.SetFormat(cfg.LogFormat); err != nil {
		log.Fatal("main.log_format:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	notifier, closeNotifier, err := newNotifier(ctx, cfg)
	if err != nil {
		log.Fatal("main.notifier:", err)
	}
	defer closeNotifier()

	app, err := app.New(db, cfg, notifier)
	if err != nil {
		log.Fatal("main.app:", err)
	}

	handler := routes.Wire(app)

	err = runServer(ctx, cfg, handler)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

// newNotifier publishes verdicts on Redis when an address is configured and
// only logs them otherwise.
func newNotifier(ctx context.Context, cfg config.Config) (notify.Notifier, func(), error) {
	if cfg.RedisAddr == "" {
		return notify.Log{}, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, nil, err
	}
	log.Infof("Publishing verdicts on redis %s (%s)", cfg.RedisAddr, cfg.RedisChannel)

	return notify.NewRedis(rdb, cfg.RedisChannel), func() { rdb.Close() }, nil
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("Listening on " + cfg.Url())
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
