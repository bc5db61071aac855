// Package serverless wraps a cloud-function handler with the monitoring
// SDK the harness tests against, simulating a GCP Cloud Functions
// runtime. Generated function programs import this package, call
// SetTestEnv, and hand their handler to Run.
//
// Capture rules mirror the GCP runtime integration under test:
//
//   - a handler panic or returned error is captured at level error with
//     mechanism {type: "gcp", handled: false};
//   - when the timeout warning is enabled, a watchdog fires shortly
//     before the configured function timeout and captures a
//     ServerlessTimeoutWarning with mechanism {type: "threading",
//     handled: false};
//   - when tracing is sampled, the invocation is wrapped in a
//     "serverless.function" transaction named after the function, with
//     the simulated trigger request attached.
package serverless

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

// Handler is a cloud-function entry point.
type Handler func(ctx context.Context, event map[string]any) (string, error)

// Options configures the monitoring SDK for one function invocation.
type Options struct {
	// TimeoutWarning arms the watchdog that reports an imminent function
	// timeout before the runtime would kill the process.
	TimeoutWarning bool

	// TracesSampleRate enables performance tracing when > 0.
	TracesSampleRate float64

	// TracesSampler overrides the fixed rate with a per-invocation
	// sampling decision. The sampler can read the function identity and
	// trigger event via TriggerFromContext on the span context.
	TracesSampler sentry.TracesSampler

	// Debug turns on the SDK's own debug logging (stderr).
	Debug bool

	// DSN overrides the placeholder DSN. The transport never dials it.
	DSN string

	// Transport overrides the default stdout LineTransport.
	Transport sentry.Transport

	// Event is the trigger event passed to the handler.
	Event map[string]any
}

const (
	defaultDSN      = "https://123abc@example.com/123"
	shutdownTimeout = 10 * time.Second

	// The watchdog fires this long before the configured timeout, so the
	// warning reaches the transport while the function is still running.
	timeoutWarningBuffer = 1500 * time.Millisecond

	timeoutWarningFormat = "WARNING : Function is expected to get timed out. Configured timeout duration = %d seconds."
)

// SetTestEnv sets the environment variables a GCP Cloud Functions
// runtime would provide. Generated programs call this before Run so the
// simulated cloud identity is fixed and deterministic.
func SetTestEnv() {
	os.Setenv("FUNCTION_TIMEOUT_SEC", "3")
	os.Setenv("FUNCTION_NAME", "Google Cloud function")
	os.Setenv("ENTRY_POINT", "cloud_function")
	os.Setenv("FUNCTION_IDENTITY", "func_ID")
	os.Setenv("FUNCTION_REGION", "us-central1")
	os.Setenv("GCP_PROJECT", "serverless_project")
}

// Run initializes the monitoring SDK with a capturing transport, invokes
// the handler once, and flushes all captured telemetry before returning.
// The returned error reports SDK initialization failure only; handler
// errors are captured telemetry, not harness errors.
func Run(opts Options, fn Handler) error {
	transport := opts.Transport
	if transport == nil {
		transport = NewLineTransport(os.Stdout)
	}
	dsn := opts.DSN
	if dsn == "" {
		dsn = defaultDSN
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Transport:        transport,
		Debug:            opts.Debug,
		EnableTracing:    tracingEnabled(opts),
		TracesSampleRate: opts.TracesSampleRate,
		TracesSampler:    opts.TracesSampler,
	})
	if err != nil {
		return fmt.Errorf("init monitoring SDK: %w", err)
	}
	defer sentry.Flush(shutdownTimeout)

	invoke(sentry.CurrentHub(), opts, fn)
	return nil
}

// invoke runs the handler under the capture rules described in the
// package documentation.
func invoke(hub *sentry.Hub, opts Options, fn Handler) {
	name := os.Getenv("FUNCTION_NAME")
	event := opts.Event
	if event == nil {
		event = map[string]any{}
	}

	ctx := sentry.SetHubOnContext(context.Background(), hub)
	ctx = context.WithValue(ctx, triggerContextKey{}, Trigger{
		FunctionName: name,
		Region:       os.Getenv("FUNCTION_REGION"),
		Project:      os.Getenv("GCP_PROJECT"),
		URL:          FunctionURL(),
		Event:        event,
	})

	if opts.TimeoutWarning {
		if timeout := configuredTimeout(); timeout > timeoutWarningBuffer {
			watchdog := time.AfterFunc(timeout-timeoutWarningBuffer, func() {
				captureTimeoutWarning(hub, timeout)
			})
			defer watchdog.Stop()
		}
	}

	var span *sentry.Span
	if tracingEnabled(opts) {
		request, err := http.NewRequest(http.MethodPost, FunctionURL(), nil)
		if err == nil {
			// The SDK reconstructs the URL from the request and takes the
			// scheme from TLS state or this header; a client-constructed
			// request carries neither, so pin the https trigger scheme.
			request.Header.Set("X-Forwarded-Proto", "https")
			hub.Scope().SetRequest(request)
		}
		span = sentry.StartSpan(ctx, "serverless.function",
			sentry.WithTransactionName(name),
			sentry.WithTransactionSource(sentry.SourceComponent),
		)
		ctx = span.Context()
		defer span.Finish()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			captureUnhandled(hub, asError(recovered))
			if span != nil {
				span.Status = sentry.SpanStatusInternalError
			}
		}
	}()

	if _, err := fn(ctx, event); err != nil {
		captureUnhandled(hub, err)
	}
}

func tracingEnabled(opts Options) bool {
	return opts.TracesSampleRate > 0 || opts.TracesSampler != nil
}

type triggerContextKey struct{}

// Trigger describes one invocation: the simulated cloud identity plus
// the trigger event handed to the handler.
type Trigger struct {
	FunctionName string
	Region       string
	Project      string
	URL          string
	Event        map[string]any
}

// TriggerFromContext returns the invocation's trigger details. Sampler
// callbacks receive the span context, so a TracesSampler can inspect
// the function identity and trigger event when deciding a rate.
func TriggerFromContext(ctx context.Context) (Trigger, bool) {
	trigger, ok := ctx.Value(triggerContextKey{}).(Trigger)
	return trigger, ok
}

// FunctionURL builds the simulated trigger URL from the runtime
// environment, matching the GCP HTTPS trigger format.
func FunctionURL() string {
	return fmt.Sprintf("https://%s-%s.cloudfunctions.net/%s",
		os.Getenv("FUNCTION_REGION"),
		os.Getenv("GCP_PROJECT"),
		os.Getenv("FUNCTION_NAME"),
	)
}

// captureUnhandled reports a handler failure, tagging every exception in
// the chain as unhandled by the gcp subsystem.
func captureUnhandled(hub *sentry.Hub, err error) {
	client := hub.Client()
	if client == nil {
		return
	}
	event := client.EventFromException(err, sentry.LevelError)
	for i := range event.Exception {
		event.Exception[i].Mechanism = &sentry.Mechanism{
			Type:    "gcp",
			Handled: boolPtr(false),
		}
	}
	hub.CaptureEvent(event)
}

// captureTimeoutWarning reports the imminent-timeout event from the
// watchdog goroutine.
func captureTimeoutWarning(hub *sentry.Hub, timeout time.Duration) {
	event := sentry.NewEvent()
	event.Level = sentry.LevelError
	event.Exception = []sentry.Exception{{
		Type:  "ServerlessTimeoutWarning",
		Value: fmt.Sprintf(timeoutWarningFormat, int(timeout/time.Second)),
		Mechanism: &sentry.Mechanism{
			Type:    "threading",
			Handled: boolPtr(false),
		},
	}}
	hub.CaptureEvent(event)
}

// configuredTimeout reads the runtime's function timeout. Zero when the
// variable is missing or malformed, which disarms the watchdog.
func configuredTimeout() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("FUNCTION_TIMEOUT_SEC"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func asError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return err
	}
	return fmt.Errorf("%v", recovered)
}

func boolPtr(b bool) *bool { return &b }
