package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"paygate/access"
	"paygate/auth"
	"paygate/condition"
	"paygate/config"
	"paygate/db"
	"paygate/gateway"
	"paygate/ledger"
	"paygate/notify"
	"paygate/reconcile"
	"paygate/report"
	"paygate/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	users := auth.NewRepository(pool)
	authSvc := auth.NewService(users, cfg.JWTSecret)
	conditions := condition.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	outbox := notify.NewOutbox(pool)
	notifier := notify.NewNotifier(outbox, cfg.MailStudents, cfg.MailTeachers, cfg.MailAdmins)

	engine := reconcile.NewEngine(reconcile.Deps{
		Pool:     pool,
		Exec:     pool,
		Users:    users,
		Contexts: conditions,
		Ledger:   ledgerRepo,
		Notifier: notifier,
		Revoker:  notify.NewRevokeDispatcher(outbox, pool),
	})

	evaluator := access.NewEvaluator(ledgerRepo)
	if cfg.RedisAddr != "" {
		evaluator = evaluator.WithCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	verifier := gateway.NewVerifier(cfg.Sandbox)

	mux := http.NewServeMux()
	mux.Handle("/ipn", webhook.NewHandler(verifier, engine, notifier, pool))
	mux.Handle("/auth/register", auth.HandleRegister(authSvc))
	mux.Handle("/auth/login", auth.HandleLogin(authSvc))
	mux.Handle("/report/transactions", report.RequireOperator(authSvc, report.HandleListTransactions(ledgerRepo)))
	mux.Handle("/report/access", report.RequireOperator(authSvc, report.HandleAccessDecision(evaluator)))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := notify.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("bootstrap kafka producer: %v", err)
		}
		defer producer.Close()

		relay := notify.NewRelay(outbox, producer)
		g.Go(func() error { return relay.Run(gctx) })
	}

	g.Go(func() error {
		log.Printf("listening on %s (sandbox=%v)", cfg.HTTPAddr, cfg.Sandbox)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("run: %v", err)
	}
}
