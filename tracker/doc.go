// Package tracker publishes periodic measurements of host resources backing
// the database, currently the free-space percentage of the disk that holds a
// tracked directory.
//
// A [DiskSpaceTracker] owns one background sampling goroutine with explicit
// Start/Stop lifecycle. Sampling is best-effort: a missing mount point or a
// failed query skips that tick's publish and never surfaces an error, so a
// transient unmount or permission problem cannot take the host process down
// with it.
//
// # What this package must NOT do
//
//   - Alert or threshold on the sampled values; it only measures and
//     publishes.
//   - Impose timeouts on individual disk queries. A hung query stalls the
//     sampler silently until the query returns; this is a known limitation.
package tracker
