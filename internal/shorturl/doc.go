// Package shorturl provides a URL-shortening service backed by the
// sharded key-value store. Short codes are base62-encoded sequence
// numbers; a forward store maps codes to URLs and a reverse store maps
// URLs back to their codes so shortening is idempotent. The mapping can
// be saved to and restored from a CSV file.
package shorturl
