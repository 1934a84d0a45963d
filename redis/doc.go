// Package redis provides a Redis client component with connection pooling,
// lifecycle management and health checks. The Redis tracker backend writes
// transitions through it.
package redis
