package api

// EventName identifies a source-control lifecycle event.
type EventName string

const (
	EventPull              EventName = "pull"
	EventPush              EventName = "push"
	EventCommit            EventName = "commit"
	EventBranchChanged     EventName = "branchChanged"
	EventRepositoryChanged EventName = "repositoryChanged"
)

// SourceControlEventNames lists every name the source-control channel
// accepts, in declaration order.
var SourceControlEventNames = []EventName{
	EventPull,
	EventPush,
	EventCommit,
	EventBranchChanged,
	EventRepositoryChanged,
}

// SourceControlEvent is the closed set of source-control lifecycle events.
// Each concrete type fixes the payload for its name; the unexported marker
// method keeps other packages from adding variants.
type SourceControlEvent interface {
	EventName() EventName
	sourceControlEvent()
}

// PullEvent is published after a pull completed. It has no payload.
type PullEvent struct{}

// PushEvent is published after a push completed. It has no payload.
type PushEvent struct{}

// CommitEvent is published after a commit was created.
type CommitEvent struct {
	Message string `json:"message"`
}

// BranchChangedEvent is published after the working branch changed.
type BranchChangedEvent struct {
	BranchName string `json:"branchName"`
}

// RepositoryChangedEvent is published after the connected repository changed.
type RepositoryChangedEvent struct {
	RepositoryURL string `json:"repositoryUrl"`
}

func (PullEvent) EventName() EventName              { return EventPull }
func (PushEvent) EventName() EventName              { return EventPush }
func (CommitEvent) EventName() EventName            { return EventCommit }
func (BranchChangedEvent) EventName() EventName     { return EventBranchChanged }
func (RepositoryChangedEvent) EventName() EventName { return EventRepositoryChanged }

func (PullEvent) sourceControlEvent()              {}
func (PushEvent) sourceControlEvent()              {}
func (CommitEvent) sourceControlEvent()            {}
func (BranchChangedEvent) sourceControlEvent()     {}
func (RepositoryChangedEvent) sourceControlEvent() {}
