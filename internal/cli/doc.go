// Package cli provides the interactive Digital Mira terminal client.
//
// The process stands in for one browser tab: it opens the durable SQLite
// scope shared with every other client on the same database, keeps its own
// tab-local scope in memory, and runs a REPL over the identity store, the
// progress summary and the store builder. A background watcher reports
// changes other clients make to the durable scope.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
