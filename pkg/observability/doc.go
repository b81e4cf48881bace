/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
structured log lines.

Hooks from several sources can be merged with Combine and passed to the engine
as one domain.LifecycleHooks value.
*/
package observability
