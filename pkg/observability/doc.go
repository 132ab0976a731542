/*
Package observability turns bridge lifecycle hooks into Prometheus metrics and structured log lines.

Both helpers return domain.Hooks, so they can be combined with Hooks.Merge and passed to bridge.WithHooks.
*/
package observability
