// Package observability configures process-wide logging and trace propagation.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Log formats understood by Instrument.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatOTel = "otel"
)

// OTLP protocols understood by Instrument.
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// Options selects where log records go.
type Options struct {
	Level  slog.Level
	Format string

	// OTLPEndpoint is only used with FormatOTel. Empty means records are
	// written to Output by the stdout exporter.
	OTLPEndpoint string
	OTLPProtocol string

	// ServiceName is the instrumentation scope of the otel handler.
	ServiceName string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger and the W3C trace context
// propagator. The returned ShutdownFunc must be called before exit so
// buffered otel records are exported.
func Instrument(ctx context.Context, opts Options) (ShutdownFunc, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	noop := func(context.Context) error { return nil }

	switch opts.Format {
	case FormatText, "":
		slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.Level})))
		return noop, nil
	case FormatJSON:
		slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level})))
		return noop, nil
	case FormatOTel:
		exporter, err := newExporter(ctx, opts, out)
		if err != nil {
			return nil, fmt.Errorf("creating log exporter: %w", err)
		}

		processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(opts.Level))
		provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
		global.SetLoggerProvider(provider)

		name := opts.ServiceName
		if name == "" {
			name = "bpmctl"
		}
		slog.SetDefault(slog.New(otelslog.NewHandler(name, otelslog.WithLoggerProvider(provider))))

		return func(ctx context.Context) error {
			return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
		}, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", opts.Format)
	}
}

func newExporter(ctx context.Context, opts Options, out io.Writer) (sdklog.Exporter, error) {
	if opts.OTLPEndpoint == "" {
		return stdoutlog.New(stdoutlog.WithWriter(out))
	}

	switch opts.OTLPProtocol {
	case ProtocolHTTP, "":
		return otlploghttp.New(ctx, otlploghttp.WithEndpointURL(opts.OTLPEndpoint))
	case ProtocolGRPC:
		return otlploggrpc.New(ctx, otlploggrpc.WithEndpointURL(opts.OTLPEndpoint))
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", opts.OTLPProtocol)
	}
}

// severity maps a slog level onto the closest otel severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level < slog.LevelInfo:
		return minsev.SeverityDebug
	case level < slog.LevelWarn:
		return minsev.SeverityInfo
	case level < slog.LevelError:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
