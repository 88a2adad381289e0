package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"leadline.org/internal/audit"
	"leadline.org/internal/auth"
	"leadline.org/internal/config"
	"leadline.org/internal/crm"
	"leadline.org/internal/httpapi"
	"leadline.org/internal/obs"
	"leadline.org/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		db         *sql.DB
		users      auth.UserStore
		leads      crm.LeadStore
		customers  crm.CustomerStore
		tasks      crm.TaskStore
		activities audit.ActivityStore
	)

	if cfg.Dev {
		// Dev mode runs entirely in memory.
		users = auth.NewMemoryUserStore()
		mem := crm.NewMemoryStore()
		leads = mem.Leads()
		customers = mem.Customers()
		tasks = mem.Tasks()
		activities = audit.NewMemoryActivityStore()
	} else {
		db, err = sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnLifetime)

		users = auth.NewPGUserStore(db)
		leads = crm.NewPGLeadStore(db)
		customers = crm.NewPGCustomerStore(db)
		tasks = crm.NewPGTaskStore(db)
		activities = audit.NewPGActivityStore(db)
	}

	accessSecret := cfg.Auth.AccessSecret
	refreshSecret := cfg.Auth.RefreshSecret
	if cfg.Dev && accessSecret == "" {
		accessSecret = "dev-access-secret"
		refreshSecret = "dev-refresh-secret"
	}

	issuer, err := auth.NewTokenIssuer(
		accessSecret,
		refreshSecret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	authSvc, err := auth.NewService(users, issuer)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	feed := stream.New()
	recorder := audit.NewRecorder(activities, audit.WithPublisher(feed))
	crmSvc := crm.NewService(leads, customers, tasks, crm.WithRecorder(recorder))

	api := httpapi.New(httpapi.Deps{
		Auth:       authSvc,
		CRM:        crmSvc,
		Activities: activities,
		Stream:     feed,
		Ready:      httpapi.ReadyProbe{DB: db},
		Version:    version,
		HTTP:       cfg.HTTP,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Printf("Starting leadline-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
