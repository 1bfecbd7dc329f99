// Package pkg provides shared utilities for the MTP responder.
//
// This package contains common functionality used across the wire codec,
// object database, storage registry, and transaction engine:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for conditions that predate an MTP response code
//   - Component identifiers for log filtering
//
// The package is designed to have zero external dependencies, relying
// only on the Go standard library.
//
// # Logging
//
// The logging subsystem wraps [log/slog] with responder-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentEngine, "session opened", "id", 1)
//
// # Errors
//
// Conditions that arise below the level of an MTP response code — a
// truncated container, a closed transport, a missing edit session — are
// sentinel values:
//
//	if errors.Is(err, pkg.ErrCodecTruncated) {
//	    // abort the transaction
//	}
package pkg
