// Package cache stores rendered parse responses keyed by prompt text. The
// parser is deterministic, so a cached response stays valid until the process
// restarts with a different vocabulary; the key prefix carries a vocabulary
// fingerprint to keep shared Redis instances consistent across deployments.
package cache
