// Package flowcanvas is the headless core of a workflow canvas editor.
//
// It owns the state behind the canvas: the open workflow graph with its
// dirty and version bookkeeping, the viewport, the permissions derived from
// the user's scopes, the feature flags and the source-control events. There
// is no rendering here; a UI subscribes to the stores and draws.
//
// # Core Concepts
//
//  1. Session
//  2. EditorStore
//  3. FlagStore
//  4. SourceControlChannel
//  5. Syncer
//
// # Session
//
// NewSession wires everything from a Config:
//
//	cfg, err := flowcanvas.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	sess, err := flowcanvas.NewSession(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Close()
//
// The state backend (memory, sqlite, redis, postgres or mongo) keeps the
// feature flags and the per-workflow viewport across sessions.
//
// # EditorStore
//
// The editor store holds one workflow at a time. Every graph change goes
// through MutateGraph, which bumps the version and marks the store dirty.
// MarkSaved(version) only clears the dirty bit when no edit happened since
// that version was sent, so a slow save never hides newer edits:
//
//	st := sess.Editor.State()
//	// send st.Graph ...
//	sess.Editor.MarkSaved(ctx, st.Version)
//
// Loads are ticketed the same way: a load that completes after a newer one
// started is discarded.
//
// # FlagStore
//
// Named boolean flags with synchronous, forward-only subscriptions. The
// enterprise audit-log flag feeds StoreState.AuditLogsEnabled.
//
// # SourceControlChannel
//
// A closed set of repository events (pull, push, commit, branchChanged,
// repositoryChanged) with a fixed payload per event. When Config.RepoDir is
// set, the session's git repository publishes on it after every successful
// operation.
//
// # Syncer
//
// The syncer runs the REST round-trips: it fetches a workflow under a load
// ticket and saves the current graph with retries before calling MarkSaved.
package flowcanvas
