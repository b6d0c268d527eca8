// Package session keeps per-conversation history for the lifetime of the
// process.
//
// A session is identified by a caller-supplied key: a web session id, or a
// phone number prefixed by its channel ("sms_+15550100", "voice_+15550100").
// History is appended strictly in user/assistant pairs, so a failed request
// never leaves a dangling user turn behind.
//
// The store is a single mutex-guarded table, so concurrent requests for the
// same session serialize on it. TTL and per-session size bounds keep
// a long-running server from growing without limit. Nothing survives a
// process restart.
package session
