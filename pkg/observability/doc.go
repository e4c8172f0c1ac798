// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown plumbing for rosterd services.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("class_id", classID).Info("membership updated")
//
// # Prometheus Metrics
//
// Initialize metrics once at startup:
//
//	metrics := observability.InitMetrics()
//	metrics.AuthzDecisionsTotal.WithLabelValues("allow", "class_role").Inc()
//
// # Health Checks
//
// Configure a health checker over the backing stores:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	mux.HandleFunc("/healthz", checker.Liveness)
//	mux.HandleFunc("/readyz", checker.Readiness)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/authz: decision engine that records decision metrics
package observability
