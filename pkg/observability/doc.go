/*
Package observability exposes Prometheus collectors for the check-in engine.

Metrics are fed through lifecycle hooks rather than instrumented call sites,
so the engine itself stays free of metrics imports.
*/
package observability
