/*
Package observability provides lifecycle hooks for monitoring plan runs.

Hooks from several observers are fanned out with Combine, and LoggingHooks
reports every node transition to a slog logger.
*/
package observability
