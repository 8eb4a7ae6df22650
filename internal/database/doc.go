// Package database reads the web front end's SQLite tables the thumbnail
// service needs: profile nicknames for watermarks and share links for the
// public thumbnail route.
//
// Nicknames are cached in an expiring LRU. The database uses WAL mode and
// creates the tables on first open so the service can run standalone.
package database
