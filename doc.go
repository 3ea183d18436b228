// Package backend provides the Pixelblog API server.

// This package contains the module root. The actual API documentation is
// organized into subpackages:

// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/models: Data models and database schemas
// - internal/auth: Authentication and owner authorization
// - internal/identity: Dual identity resolution (accounts and anonymous sessions)
// - internal/feed: Public timeline pagination
// - internal/engagement: Likes and comments
// - internal/authoring: Owner post lifecycle
// - internal/realtime: WebSocket server for change events
// - internal/weather: Weather snapshot client
// - internal/music: Spotify link resolution
// - internal/storage: File storage (S3) operations
// - internal/database: Database connection and migrations
// - internal/cache: Redis like-count caching
// - internal/middleware: HTTP middleware (request ids, metrics, identity)

// See the individual package documentation for detailed API reference.
package backend
