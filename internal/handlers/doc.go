// Package handlers exposes the thumbnail service over HTTP.
//
// Routes:
//   - GET /thumbnail/{repo_id}/{size}/{path}: thumbnail of a library file.
//     The front proxy may set X-Seafile-Watermark to request a watermark.
//   - GET /thumbnail/{token}/{size}/{path}: thumbnail through a share link.
//   - GET /healthz, /livez, /version
//
// Generation failures are answered with a JSON [ErrorResponse] carrying the
// status from the thumbnail generator (400, 403 or 500).
package handlers
