package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"legal-discovery-be/internal/config"
	"legal-discovery-be/internal/repository/implementation"
	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/database"
	"legal-discovery-be/pkg/events"
	pktNats "legal-discovery-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	backendName := flag.String("backend", cfg.Audit.Backend, "ledger backend: file | postgres | redis")
	path := flag.String("path", cfg.Audit.FilePath, "ledger file for the file backend")
	follow := flag.Bool("follow", false, "after verifying, print audit events relayed over NATS")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, *backendName, *path, cfg)
	if err != nil {
		color.Red("❌ %v", err)
		os.Exit(2)
	}
	defer backend.Close()

	color.Cyan("🔎 Verifying %s ledger...", *backendName)
	start := time.Now()
	report, err := audit.VerifyBackend(ctx, backend, nil)
	if report.OK && err == nil {
		color.Green("✅ Chain intact: %d events, head %s (%s)", report.Checked, short(report.HeadHash), time.Since(start).Round(time.Millisecond))
	} else if report.FirstBadSequence != nil {
		color.Red("❌ Integrity violation at sequence %d: %s", *report.FirstBadSequence, report.Reason)
		color.Yellow("   %d events verified before the break", report.Checked)
		os.Exit(1)
	} else {
		color.Red("❌ Verification failed: %v", err)
		os.Exit(2)
	}

	if !*follow {
		return
	}

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		color.Red("❌ NATS: %v", err)
		os.Exit(2)
	}
	defer sub.Close()

	printEvent := func(_ context.Context, ev events.Event) error {
		data := ev.Payload()
		line := fmt.Sprintf("#%v %v %v %v (%v)", data["sequence_no"], data["decision"], data["subject"], data["reason_code"], data["actor"])
		switch data["decision"] {
		case "block":
			color.Red("%s", line)
		case "redact":
			color.Yellow("%s", line)
		default:
			fmt.Println(line)
		}
		return nil
	}
	alarm := func(_ context.Context, ev events.Event) error {
		color.New(color.FgHiRed, color.Bold).Printf("🚨 %s %v\n", ev.EventType(), ev.Payload())
		return nil
	}

	if err := sub.Subscribe(ctx, events.TypeAuditEventAppended, "", printEvent); err != nil {
		color.Red("❌ %v", err)
		os.Exit(2)
	}
	if err := sub.Subscribe(ctx, events.TypeAuditIntegrityViolation, "", alarm); err != nil {
		color.Red("❌ %v", err)
		os.Exit(2)
	}
	color.Cyan("👀 Following audit events, Ctrl+C to stop")
	<-ctx.Done()
}

func openBackend(ctx context.Context, name, path string, cfg *config.Config) (audit.Backend, error) {
	switch name {
	case "file":
		return audit.NewFileBackend(path)
	case "postgres":
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		return implementation.NewAuditEventRepository(db), nil
	case "redis":
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return audit.NewRedisBackend(rdb, cfg.Audit.RedisKey), nil
	default:
		return nil, fmt.Errorf("backend %q cannot be verified offline", name)
	}
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
