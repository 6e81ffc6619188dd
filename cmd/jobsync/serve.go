package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"jobmate/jobsync/internal/config"
	"jobmate/jobsync/internal/db"
	"jobmate/jobsync/internal/events"
	"jobmate/jobsync/internal/grpcserver"
	"jobmate/jobsync/internal/httpapi"
	"jobmate/jobsync/internal/jobsync"
	"jobmate/jobsync/internal/logging"
	"jobmate/jobsync/internal/model"
	"jobmate/jobsync/internal/notify"
	"jobmate/jobsync/internal/scheduler"
	"jobmate/jobsync/internal/session"
	"jobmate/jobsync/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync server",
	Long: `Run the sync server.

The server loads every job from the remote store, keeps the cache fresh on
a schedule and on Redis invalidations, follows the logged-in user in the
session file and exposes:

  REST       :$JOBSYNC_PORT       (GET /health, /jobs, /me, ...)
  websocket  :$JOBSYNC_PORT/events
  gRPC       :$JOBSYNC_GRPC_PORT  (jobsync.v1.JobSync, grpc.health.v1)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	_, logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, MaxSizeMB: cfg.LogMaxSizeMB})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Remote store ────────────────────────────────────────────────────────
	gw, closeStore, err := openGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── Notifications ───────────────────────────────────────────────────────
	hub := notify.NewHub(256)
	notifiers := notify.Fanout{notify.LogNotifier{}, hub}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		log.Println("[jobsync] Connecting to Redis…")
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		notifiers = append(notifiers, events.NewRedisNotifier(rdb, cfg.NotifyChannel))
		log.Println("[jobsync] Redis connected ✓")
	} else {
		log.Println("[jobsync] REDIS_URL not set, publishing and invalidation disabled")
	}

	syncer := jobsync.New(gw,
		jobsync.WithRollback(cfg.RollbackOnFailure),
		jobsync.WithNotifier(notifiers),
	)
	reload := events.ReloaderFunc(func(ctx context.Context) error {
		_, err := syncer.LoadAll(ctx)
		return err
	})

	// ── Session ─────────────────────────────────────────────────────────────
	sessions, err := session.Open(ctx, cfg.SessionDB)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer sessions.Close()

	if u, err := sessions.Current(ctx); err != nil {
		log.Printf("[jobsync] Could not read session: %v", err)
	} else if u != nil {
		log.Printf("[jobsync] Restored session for user %s", u.ID)
		if err := syncer.SetUser(ctx, u); err != nil {
			log.Printf("[jobsync] Reconcile for restored user failed: %v", err)
		}
	}

	// ── Scheduler ───────────────────────────────────────────────────────────
	sched := scheduler.New(reload, cfg.ReloadIntervalMinutes)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Stop()

	// ── HTTP server ─────────────────────────────────────────────────────────
	h := httpapi.NewHandler(syncer,
		httpapi.WithSessions(sessions),
		httpapi.WithEvents(hub),
		httpapi.WithVersion(version),
	)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// No read/write timeouts: /events connections are long-lived.
	}

	// ── gRPC server ─────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpc.NewServer()
	grpcserver.Register(gs, grpcserver.NewServer(syncer))
	hs := health.NewServer()
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		w := session.NewWatcher(sessions, func(ctx context.Context, u *model.User) {
			if u == nil {
				log.Println("[jobsync] Session cleared")
			} else {
				log.Printf("[jobsync] Session changed to user %s", u.ID)
			}
			if err := syncer.SetUser(ctx, u); err != nil {
				log.Printf("[jobsync] Reconcile after session change failed: %v", err)
			}
		})
		return w.Run(gctx)
	})
	if rdb != nil {
		g.Go(func() error {
			return events.NewInvalidator(rdb, cfg.InvalidateChannel, reload).Run(gctx)
		})
	}
	g.Go(func() error {
		log.Printf("[jobsync] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("[jobsync] gRPC listening on :%s", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// ── Graceful shutdown ───────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[jobsync] Shutting down…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		hs.Shutdown()
		hub.Close()
		gs.GracefulStop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[jobsync] Shutdown error: %v", err)
		}
		return nil
	})

	err = g.Wait()
	log.Println("[jobsync] Stopped.")
	return err
}

// openGateway connects the configured remote store. The returned func
// releases it.
func openGateway(ctx context.Context, cfg *config.Config) (jobsync.Gateway, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Println("[jobsync] Using the in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	log.Println("[jobsync] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := store.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Println("[jobsync] PostgreSQL connected ✓")
	return store.NewPostgres(pool), pool.Close, nil
}
