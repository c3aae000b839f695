// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - DocumentStore: Document and chunk persistence
//   - JobQueue: Durable, at-least-once processing job delivery
//   - ConversionDispatcher: Hands jobs to the external conversion worker
//   - SearchEngine: Full-text keyword search (SQLite FTS5, BM25)
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: External vector storage/search (Qdrant). Without it,
//     semantic search and outbox sync are disabled.
//   - EmbeddingService: Generates query embeddings. Without it, vector
//     search is also disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
