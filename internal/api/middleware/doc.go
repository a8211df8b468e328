// Package middleware provides the HTTP middleware of the console server.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing, websocket upgrades included
//   - RateLimit: Per-IP token bucket rate limiting with idle eviction
//   - GlobalRateLimit: One token bucket shared by every client
//   - RequestLogger: Structured request logging through zap
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
