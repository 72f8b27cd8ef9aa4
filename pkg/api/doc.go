// Package api contains the core building blocks used by the flowcanvas
// state engine. It provides the value types the editor works with, the
// contracts of the stores, and the hooks used to observe them.
//
// Most users interact with the higher-level flowcanvas package, which
// re-exports selected types and wires the stores into a Session. The api
// package is intended for custom integrations and for contributors
// extending the engine itself.
//
// # Concepts
//
// The api package centers around a small set of concepts:
//
//   - Graphs and mutations
//   - Viewports
//   - Permissions
//   - Source-control events
//   - Observability
//
// # Graphs and Mutations
//
// A Graph is the workflow open in the editor: its nodes, the connections
// between them, and a little metadata. Graphs handed out by the editor
// store are immutable snapshots; every change goes through a Mutation
// (AddNode, RemoveNode, UpdateNode, AddConnection, RemoveConnection,
// RenameWorkflow, Batch) which the store applies to a private copy.
// A Mutation that does not fit the graph fails with a
// ContractViolationError and leaves the store untouched.
//
// # Viewports
//
// Viewport is the canvas pan/zoom transform. It is a pure value: Pan,
// ZoomTo and ZoomBy return new viewports, and ToWorld/ToScreen convert
// between coordinate spaces. ZoomTo keeps the anchor point fixed on screen
// and clamps the zoom level into ZoomBounds instead of failing.
//
// # Permissions
//
// PermissionResolver turns an opaque scope list into a PermissionSet for
// one resource type. It is total and deterministic; unknown scopes are
// ignored.
//
// # Source-Control Events
//
// SourceControlEvent is a closed sum type with one variant per event name
// (pull, push, commit, branchChanged, repositoryChanged). The variant fixes
// the payload, so a mismatched payload cannot be published through the
// typed API.
//
// # Observability
//
// The Observer interface is used by the editor store and the session to
// report loads, mutations, saves, stale races and handler failures.
// NoopObserver, CompositeObserver, LoggingObserver (log/slog) and
// BasicMetrics are ready-made implementations.
//
// # Errors
//
// Contract violations are returned as *ContractViolationError and indicate
// programming errors. Handler failures from a dispatch round are collected
// into a *DispatchError. Stale saves and stale loads are not errors; they
// are reported through the Observer.
package api
