// Package fetcher retrieves raw listing records from the upstream procurement
// API or from a JSON export on disk.
//
// HTTPFetcher pages through the provider's visitor listing endpoint with
// browser-like headers and a rate limit between requests. FileFetcher serves the
// same payload shape from a file, for offline imports and tests. Both map the
// provider's field names onto core.RawRecord.
package fetcher
