// Package launcher runs one harness run from outside the host process and
// decides its verdict.
//
// A run goes through these phases:
//
//  1. Resolve the host: acquire a release from the version manifest, or use
//     the configured executable path.
//  2. Allocate a run id, its sink directory and its host home
//     <sink_dir>/<run_id>/home.
//  3. Install the harness plugin descriptor into <run home>/UserPlugins.
//  4. Spawn the host, in its own process group, with the run configuration
//     in its environment.
//  5. Poll the run's sink until the completion marker appears, the host
//     exits, or the timeout fires.
//
// # Verdicts
//
//   - Completion marker seen: the verdict aggregates the recorded results.
//     A host that keeps running afterwards is killed after a grace period;
//     that is not a failure.
//   - Host exited without a marker: Crash, with every result flushed
//     before the exit.
//   - Timeout: the host and everything it spawned are killed and the
//     verdict is Timeout.
//   - Any failure before the host runs: SetupFailure.
//
// Run never returns without a verdict, and a run is never reported as
// passed without its completion marker.
package launcher
