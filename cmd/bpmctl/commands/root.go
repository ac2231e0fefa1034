package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/bpm-client/bpm"
	"github.com/florianilch/bpm-client/internal/app"
	"github.com/florianilch/bpm-client/internal/observability"
)

// requestIDHeader correlates CLI requests with server logs.
const requestIDHeader = "X-Request-Id"

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr).Run(ctx, args)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "bpmctl",
		Usage:     "BPM engine REST client",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "server--base-url",
				Usage: "BPM server origin, e.g. http://localhost:8080",
			},
			&cli.StringFlag{
				Name:  "server--api-root",
				Usage: "path prefix of the process API, e.g. /rest/bpm/process",
			},
			&cli.StringFlag{
				Name:  "server--token-endpoint",
				Usage: "token endpoint path",
				Value: bpm.DefaultTokenEndpoint,
			},
			&cli.StringFlag{
				Name:  "client--name",
				Usage: "client name the access token is stored under",
				Value: app.DefaultConfigClientName,
			},
			&cli.StringFlag{
				Name:  "token--storage",
				Usage: "token storage (memory|file|keyring|env)",
				Value: string(app.DefaultConfigTokenStorage),
			},
			&cli.StringFlag{
				Name:  "token--dir",
				Usage: "token directory for file storage",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			definitionsCommand(),
			instancesCommand(),
			tasksCommand(),
			summaryCommand(),
			stubCommand(),
		},
	}
}

// session is what client-backed actions run with.
type session struct {
	cfg    *app.Config
	client *bpm.Client
}

type sessionAction func(ctx context.Context, cmd *cli.Command, s *session) error

// prepare loads the configuration and sets up logging.
func prepare(ctx context.Context, cmd *cli.Command) (*app.Config, observability.ShutdownFunc, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts := cfg.ObservabilityOptions()
	opts.Output = cmd.Root().ErrWriter
	shutdown, err := observability.Instrument(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	return cfg, shutdown, nil
}

// withSession adapts a sessionAction to a cli action that owns config, logging and client setup.
func withSession(action sessionAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) (err error) {
		cfg, shutdown, err := prepare(ctx, cmd)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, shutdown(context.WithoutCancel(ctx)))
		}()

		client, err := cfg.NewClient(
			bpm.WithLogger(slog.Default()),
			bpm.WithRequestEditorFn(setRequestID),
		)
		if err != nil {
			return err
		}

		return action(ctx, cmd, &session{cfg: cfg, client: client})
	}
}

// setRequestID tags a request with a fresh request id unless one is set.
func setRequestID(_ context.Context, req *http.Request) error {
	if req.Header.Get(requestIDHeader) == "" {
		req.Header.Set(requestIDHeader, uuid.NewString())
	}
	return nil
}
