// Package precheck provides the system validation that gates every
// create/update/repair operation on a bundle: disk, memory, and file
// descriptor headroom before PreflightBundle commits to a potentially
// long-running ingest.
//
// The package validates:
//   - Disk space availability (minimum 100MB)
//   - Memory availability (minimum 1GB, compared against a fixed 4GB
//     estimate; system memory is not measured)
//   - Write permissions in the bundle's project directory
//   - File descriptor limits (minimum 1024)
//   - Local embedding model presence and disk headroom for its download
//
// Use the Checker type to run all validations:
//
//	checker := precheck.New()
//	results := checker.RunAll(ctx, "/path/to/project")
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package precheck
