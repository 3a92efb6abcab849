package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"slotbot/internal/app"
	"slotbot/internal/config"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "optional path to a yaml/json config file (env vars override it)")
	flag.Parse()

	// A missing .env is fine; the process environment is used as is.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		if errors.Is(err, config.ErrMissingToken) || errors.Is(err, config.ErrMissingTargetURL) {
			fmt.Fprintln(os.Stderr, "fatal: configuration incomplete:", err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		_ = a.Stop(context.Background())
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	err = a.Stop(context.Background())
	if cerr := a.Err(); cerr != nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "stopped with error:", err)
		os.Exit(1)
	}
}
