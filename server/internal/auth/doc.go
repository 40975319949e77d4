// Package auth provides the collector's ingest authentication middleware.
//
// APIKey(mode, header, key) wraps an http.Handler. When mode is "apikey" and
// a key is configured, a request must carry the key either in the named header
// or as "Authorization: Bearer <key>"; anything else gets 401. Any other mode,
// or an empty key, lets every request through, which is convenient for local
// development.
package auth
