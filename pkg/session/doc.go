// Package session is the composition root for client-side authentication.
//
// A Session owns the configured schemes, an optional shared credential
// store and the request executor built over them. It exposes token mutation
// (SetTokens, Clear), state subscription and startup rehydration. Start
// enables proactive refresh and cross-context synchronization when they are
// configured.
//
// Sessions are plain values passed by reference; construct one per scope
// that needs it rather than relying on a global.
package session
