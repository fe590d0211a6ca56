/*
Package observability turns engine lifecycle hooks into telemetry.

Metrics registers Prometheus collectors and returns the hooks that feed them.
LogHooks writes the same events to a structured logger, and Chain combines
several hook sets so that both can be installed on one engine:

	m := observability.NewMetrics(observability.WithRegisterer(reg))
	hooks := observability.Chain(m.Hooks(), observability.LogHooks(logger))
*/
package observability
