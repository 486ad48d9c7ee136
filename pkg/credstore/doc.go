// Package credstore holds credential state as string key/value pairs.
//
// Three backends are provided. MemoryStore keeps values in the process.
// NewSessionStore and NewDurableStore wrap a Backing with a key prefix so
// several sessions can share one backing; DiskBacking writes one file per key
// and survives restarts.
//
// Values are opaque strings. The canonical keys used by the auth schemes are
// AccessTokenKey, RefreshTokenKey and ExpiresAtKey.
package credstore
