// Package ports defines the boundary interfaces of the engine: session
// persistence, template resolution, the natural-language interpreter, the
// rendering backend, distributed locking and API-key verification. Adapters
// implement these; the engine depends only on this package.
package ports
