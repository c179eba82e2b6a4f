// Package tracing wires OpenTelemetry tracing to an OTLP/HTTP collector.
//
// Call Setup once at startup with a Config loaded from the environment and
// defer the returned shutdown:
//
//	shutdown, err := tracing.Setup(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer shutdown(context.Background())
//
// Without an endpoint nothing is registered and otel's global no-op provider
// stays in place.
package tracing
