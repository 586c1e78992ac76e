// Command ojpctl is a small demonstration client for the driver: it opens a
// locator, runs a single statement, and prints the raw OpResult payload.
// It exists to exercise Driver/Conn end-to-end, not as a production tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	ojp "github.com/openjp-go/ojp"
	"github.com/openjp-go/ojp/internal/config"
	"github.com/openjp-go/ojp/internal/logger"
	"github.com/openjp-go/ojp/internal/version"
)

func main() {
	vlog := log.New(log.Writer(), "", 0)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	}

	locatorFlag := flag.String("locator", "", `locator, e.g. "jdbc:ojp[localhost:1059]_h2:mem:test"`)
	sqlFlag := flag.String("sql", "select 1", "statement to run after connecting")
	userFlag := flag.String("user", "", "database user")
	passFlag := flag.String("password", "", "database password")
	flag.Parse()

	if *locatorFlag == "" {
		fmt.Fprintln(os.Stderr, "ojpctl: -locator is required")
		os.Exit(2)
	}

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ojpctl: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logInstance, styledLogger, cleanup, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ojpctl: failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	version.PrintVersionInfo(false, vlog)
	styledLogger.Info("connecting", "locator", *locatorFlag)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		styledLogger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	driver, err := ojp.Open(*locatorFlag, cfg, styledLogger, nil)
	if err != nil {
		logger.FatalWithLogger(logInstance, "failed to open locator", "error", err)
	}
	defer driver.Close()

	conn, err := driver.Connect(ctx, *userFlag, *passFlag, nil)
	if err != nil {
		logger.FatalWithLogger(logInstance, "connect failed", "error", err)
	}
	defer conn.Close(context.Background())

	result, err := conn.ExecuteQuery(ctx, "", *sqlFlag, nil, nil)
	if err != nil {
		logger.FatalWithLogger(logInstance, "query failed", "error", err)
	}

	styledLogger.Info("query complete", "kind", result.Kind, "payload_bytes", len(result.Payload))
	fmt.Printf("%s\n", result.Payload)
}
