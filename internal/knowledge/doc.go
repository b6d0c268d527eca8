// Package knowledge loads and prepares the university knowledge base.
//
// Two kinds of sources are supported:
//
//   - a structured topic map (JSON object of topic → answer text), where each
//     entry becomes one document headed by its topic
//   - a directory of files (.pdf, .docx, .txt), where each file becomes one
//     document; other extensions are skipped
//
// Loaded documents are split into overlapping chunks by Splitter before they
// are embedded and indexed. Extraction failures are scoped to the offending
// file: the loader logs and skips it rather than aborting the batch.
package knowledge
