/*
Package workers sizes the worker pools used for batch thumbnail generation.

runtime.NumCPU reports the host's processors, while GOMAXPROCS follows the
container CPU quota. Counts are derived from GOMAXPROCS and scaled by the
kind of work:

	n := workers.For(workers.Mixed, 16) // fetch then render, at most 16

Operators can pin the count with THUMBNAIL_WORKERS. The cap passed by the
caller still applies.
*/
package workers
