package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/bpm-client/internal/app"
	"github.com/florianilch/bpm-client/internal/bpmstub"
)

func stubCommand() *cli.Command {
	return &cli.Command{
		Name:  "stub",
		Usage: "run an in-memory BPM server for local development",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the emulated process API until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "stub--host",
						Usage: "listen host",
						Value: app.DefaultConfigStubHost,
					},
					&cli.IntFlag{
						Name:  "stub--port",
						Usage: "listen port",
						Value: app.DefaultConfigStubPort,
					},
					&cli.StringFlag{
						Name:  "stub--api-root",
						Usage: "path prefix of the emulated process API",
						Value: bpmstub.DefaultAPIRoot,
					},
					&cli.StringFlag{
						Name:  "stub--user",
						Usage: "user accepted by the token endpoint",
					},
					&cli.StringFlag{
						Name:  "stub--password",
						Usage: "password of --stub--user",
					},
				},
				Action: stubServeAction,
			},
		},
	}
}

func stubServeAction(ctx context.Context, cmd *cli.Command) (err error) {
	cfg, shutdown, err := prepare(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, shutdown(context.WithoutCancel(ctx)))
	}()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
