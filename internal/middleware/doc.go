// Package middleware provides the HTTP middleware of the thumbnail server:
// structured access logging and Prometheus request metrics labelled by
// route template.
package middleware
