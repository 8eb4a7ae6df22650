/*
Package filesystem wraps the cache lookups of the thumbnail service with
retries for ESTALE.

The thumbnail root is often an NFS export shared by several frontends. When
one node replaces a cached file, another node holding an old handle sees
ESTALE on stat or open. Those calls are retried with exponential backoff;
every other error is returned at once.

	exists, err := filesystem.Exists(path, filesystem.DefaultRetryConfig())
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())

A stat error other than not-exist is returned from Exists, so callers can
tell an unreadable cache from a miss.
*/
package filesystem
