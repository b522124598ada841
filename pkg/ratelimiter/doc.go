// Package ratelimiter provides a token bucket rate limiter used to throttle
// failed MFA verification attempts per admin identity or source IP.
//
// A Bucket with capacity N and a refill of one token per interval allows N
// rapid attempts before denying further ones, which caps how fast an
// attacker can guess 6-digit codes without locking out a legitimate admin
// who mistypes once or twice.
//
// State lives behind the Store interface; MemoryStore is the bundled
// single-node implementation with background cleanup of stale buckets.
package ratelimiter
