// Package chain describes the networks and token symbols the intent parser
// recognizes. Catalogs are loaded from YAML, mirroring the chain definitions
// file used by the service, and fall back to an embedded default catalog when
// no path is configured.
package chain
