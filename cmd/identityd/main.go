package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/config"
	"github.com/MrEthical07/goIdentity/httpapi"
	"github.com/MrEthical07/goIdentity/metrics/export/prometheus"
	"github.com/MrEthical07/goIdentity/notify"
	"github.com/MrEthical07/goIdentity/store/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("IDENTITY_CONFIG"), "path to a TOML config file")
	flag.Parse()

	log.SetPrefix("identityd: ")
	if err := run(*configPath); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	var sender goIdentity.NotificationSender = notify.LogSender{}
	if cfg.SMTP.Host != "" {
		smtpSender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return err
		}
		sender = smtpSender
	} else {
		log.Print("smtp.host not set, mail is written to the log")
	}

	builder := goIdentity.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithCredentialStore(postgres.NewCredentialStore(pool)).
		WithEventStore(postgres.NewEventStore(pool)).
		WithNotificationSender(sender)
	if cfg.Identity.Audit {
		types := make([]goIdentity.EventType, len(cfg.Identity.AuditEvents))
		for i, t := range cfg.Identity.AuditEvents {
			types[i] = goIdentity.EventType(t)
		}
		builder = builder.WithAuditSink(goIdentity.NewJSONLinesSink(os.Stdout, types...))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	var limiter *httpapi.IPLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = httpapi.NewIPLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		defer limiter.Close()
	}

	app := fiber.New(fiber.Config{
		AppName:               "identityd",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	handler := httpapi.NewHandler(engine, httpapi.Options{
		InsecureCookies: cfg.Server.InsecureCookies,
		CookieDomain:    cfg.Server.CookieDomain,
	})
	var metrics http.Handler
	if cfg.Server.Metrics {
		metrics = prometheus.NewExporter(engine).Handler()
	}
	httpapi.RegisterRoutes(app, handler, limiter, metrics)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Server.Listen)
		errCh <- app.Listen(cfg.Server.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Print("shutting down")
	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
