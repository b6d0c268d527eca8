// Package index maintains the vector embedding index for the knowledge base.
//
// The index is a chromem-go persistent database on local disk holding one
// named collection. Each knowledge chunk is embedded once (via the configured
// Genkit embedder) and stored at an opaque sequential position; retrieval
// ranks chunks by cosine similarity against the query embedding.
//
// Lifecycle: Open attaches to an existing collection if one is on disk; a
// missing or unreadable store is not fatal, it simply leaves the manager
// unready and the caller rebuilds from source chunks with Build. Mutation
// (Build, Update) happens once at startup by a single writer; query serving
// only reads.
package index
