package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/geoguard/geoguard/pkg/app"
	"github.com/geoguard/geoguard/pkg/cli"
	"github.com/geoguard/geoguard/pkg/config"
	"github.com/geoguard/geoguard/pkg/observability"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	rootCmd := cli.NewRootCommand()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	env := &cli.Env{
		Operator: cli.OperatorPrincipal(os.Getenv("USER")),
		Out:      os.Stdout,
		Logger:   logger,
		Getenv:   os.Getenv,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// usage needs no store
	if !wantsHelp(args) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		a, err := app.Build(ctx, cfg, app.Options{
			Logger:            observability.NewLogger(observability.WarnLevel, os.Stderr),
			SkipCollaborators: true,
		})
		if err != nil {
			return err
		}
		defer a.Close()
		env.Service = a.Service
	}

	return rootCmd.Execute(ctx, env, args)
}

func wantsHelp(args []string) bool {
	if len(args) == 0 {
		return true
	}
	switch args[len(args)-1] {
	case "-h", "--help", "help":
		return true
	}
	return false
}
