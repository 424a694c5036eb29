// Package intentclient is a small HTTP client for the intent parsing service.
package intentclient
