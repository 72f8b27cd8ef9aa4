// Package worker connects the editor store to the server.
//
// The store itself is synchronous: every change happens inside the caller's
// call. Talking to the server is not, so a Syncer splits each round-trip
// into three parts:
//
//   - take what it needs from the store (a load ticket, or the graph and
//     version to save)
//   - block on the Remote
//   - hand the result back through the store's synchronous API
//     (CompleteLoad, MarkSaved)
//
// Races between round-trips are settled by the store, not by the Syncer. A
// load that finishes after a newer load started is dropped (stale load),
// and a save whose version was overtaken by a newer edit leaves the store
// dirty (stale save). Both are reported to the store's observer.
//
// # Retries
//
// Saves are retried according to an api.RetryPolicy with exponential
// backoff. Loads are not retried; callers simply start a new load, which
// supersedes the failed one.
package worker
