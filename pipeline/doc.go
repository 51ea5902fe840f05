// Package pipeline handles one inbound bot message at a time.
//
// A Pipeline owns the admission controller, the localized-text cache, the
// tenant cache and the upstream executors. Handle classifies the message,
// applies admission control, resolves the tenant and produces a Reply. It
// never talks to the messaging platform itself; delivering the reply is the
// caller's job.
//
// Background work (the admission janitor and the cache stats reporters) only
// runs after Start and stops when the returned function is called.
package pipeline
