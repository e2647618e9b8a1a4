package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sheikh-saqib/funding-ledger/internal/config"
	"github.com/sheikh-saqib/funding-ledger/internal/server"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var configPathFlag = cli.StringFlag{
	Name:  "config-path",
	Usage: "path to directory with configuration files",
	Value: config.DefaultConfigPath,
}

func newServeCommand() cli.Command {
	return cli.Command{
		Name:   "serve",
		Usage:  "deploy the ledger and serve its API",
		Action: startServer,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "network, n", Usage: "network to deploy on", Value: "hardhat"},
			configPathFlag,
			cli.StringFlag{Name: "config-file", Usage: "path to a configuration file, overrides --network"},
			cli.BoolFlag{Name: "debug, d", Usage: "enable debug logging"},
		},
	}
}

func newNetworksCommand() cli.Command {
	return cli.Command{
		Name:   "networks",
		Usage:  "list the networks with a configuration file",
		Action: listNetworks,
		Flags:  []cli.Flag{configPathFlag},
	}
}

func getConfigFromContext(ctx *cli.Context) (config.Config, error) {
	if f := ctx.String("config-file"); f != "" {
		if err := config.LoadDotEnv(ctx.String("config-path")); err != nil {
			return config.Config{}, err
		}
		return config.LoadFile(f)
	}
	return config.Load(ctx.String("config-path"), ctx.String("network"))
}

func startServer(ctx *cli.Context) error {
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := cfg.Validate(); err != nil {
		return cli.NewExitError(fmt.Errorf("invalid config: %w", err), 1)
	}
	log, err := config.NewLogger(ctx.Bool("debug"), cfg.Application)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	gctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := deploy(gctx, cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Warn("failed to close resources", zap.Error(err))
		}
	}()

	srv := server.New(cfg.Application, n.ledger, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return cli.NewExitError(fmt.Errorf("server failed: %w", err), 1)
		}
		return nil
	case <-gctx.Done():
	}

	sctx, scancel := context.WithTimeout(context.Background(), cfg.Application.ShutdownTimeout)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		return cli.NewExitError(fmt.Errorf("shutdown: %w", err), 1)
	}
	return <-errCh
}

func listNetworks(ctx *cli.Context) error {
	nets, err := config.Networks(ctx.String("config-path"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	for _, net := range nets {
		fmt.Fprintln(ctx.App.Writer, net)
	}
	return nil
}
