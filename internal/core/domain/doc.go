// Package domain defines the core business entities for the pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded source file and its processing state
//   - Chunk: A quality-scored, embedded text segment of a document
//   - ProcessingJob: The ephemeral queue message driving conversion
//   - CallbackPayload: The result posted back by the conversion worker
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
