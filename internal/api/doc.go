// Package api exposes the intent parser over HTTP: prompt parsing, training
// prompt collection and health reporting. Legacy endpoint paths used by older
// wallet clients are served alongside the versioned routes.
package api
