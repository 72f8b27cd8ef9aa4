// Package eventbus provides typed, synchronous publish/subscribe channels.
//
// A Bus is keyed by event name and delivers each Emit to the handlers that
// were registered when the Emit started, in registration order. Buses are
// plain values: a session constructs the ones it needs and passes them to
// the components that publish or listen, and closes them on teardown.
//
// SourceControlChannel is the bus for repository lifecycle events. It
// accepts only pull, push, commit, branchChanged and repositoryChanged, each
// with its fixed payload type from package api.
package eventbus
