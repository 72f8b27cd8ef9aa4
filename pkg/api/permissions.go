package api

import "strings"

// ResourceType names the kind of resource a scope applies to.
type ResourceType string

// Action is a capability on a resource.
type Action string

const (
	ResourceWorkflow      ResourceType = "workflow"
	ResourceCredential    ResourceType = "credential"
	ResourceSourceControl ResourceType = "sourceControl"
	ResourceAuditLogs     ResourceType = "auditLogs"
)

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionShare   Action = "share"
	ActionExecute Action = "execute"
)

// CRUDActions is the default action set resolved for every resource.
var CRUDActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// PermissionSet maps an action to whether it is granted.
type PermissionSet map[Action]bool

// Can reports whether action is granted. Unknown actions are denied.
func (p PermissionSet) Can(action Action) bool {
	return p[action]
}

// Equal reports whether p and other grant exactly the same actions.
func (p PermissionSet) Equal(other PermissionSet) bool {
	if len(p) != len(other) {
		return false
	}
	for a, v := range p {
		w, ok := other[a]
		if !ok || w != v {
			return false
		}
	}
	return true
}

// PermissionResolver turns a caller's scope list into a PermissionSet for a
// single resource type. Scopes have the form "<resource>:<action>";
// "<resource>:*" grants every action in Actions and "*" grants everything.
// Anything else is ignored.
//
// Resolve is pure: the result depends only on the resolver's fields and the
// scope list, never on order or on previous calls.
type PermissionResolver struct {
	Resource ResourceType

	// Actions is the action set to resolve. Nil means CRUDActions.
	Actions []Action

	// DefaultAllow grants every action when the scope list is empty.
	DefaultAllow bool
}

// Resolve computes the PermissionSet for scopes.
func (r PermissionResolver) Resolve(scopes []string) PermissionSet {
	actions := r.Actions
	if actions == nil {
		actions = CRUDActions
	}

	set := make(PermissionSet, len(actions))
	for _, a := range actions {
		set[a] = false
	}

	if len(scopes) == 0 {
		if r.DefaultAllow {
			for _, a := range actions {
				set[a] = true
			}
		}
		return set
	}

	prefix := string(r.Resource) + ":"
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "*" {
			for _, a := range actions {
				set[a] = true
			}
			continue
		}
		rest, ok := strings.CutPrefix(scope, prefix)
		if !ok {
			continue
		}
		if rest == "*" {
			for _, a := range actions {
				set[a] = true
			}
			continue
		}
		if _, known := set[Action(rest)]; known {
			set[Action(rest)] = true
		}
	}
	return set
}
