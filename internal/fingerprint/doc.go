// Package fingerprint turns (work type, payload) pairs into stable 64-bit
// identifiers used as the queue's primary and dedup key.
package fingerprint
