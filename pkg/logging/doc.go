// Package logging provides the subsystem-tagged logging used across authsession.
//
// It is a thin layer over log/slog. The CLI calls InitForCLI once at startup;
// library packages accept a *slog.Logger (see Logger) and default to
// slog.Default(), so everything ends up on the same handler.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Session", "Rehydrated session from %s", dir)
//	logging.Error("Refresh", err, "Proactive refresh failed")
//
//	coordinator := refresh.NewCoordinator(schemes, refresh.WithLogger(logging.Logger("Refresh")))
//
// # Audit Logging
//
// Credential writes, removals and refreshes are reported with Audit:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:  "tokens_stored",
//	    Outcome: "success",
//	    Target:  "durable",
//	})
//
// Token values are never logged; only key names, expiry times and outcomes.
package logging
