package api

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionResolver_ExactScopes(t *testing.T) {
	r := PermissionResolver{Resource: ResourceWorkflow}

	got := r.Resolve([]string{"workflow:read", "workflow:update", "credential:delete"})

	require.Equal(t, PermissionSet{
		ActionCreate: false,
		ActionRead:   true,
		ActionUpdate: true,
		ActionDelete: false,
	}, got)
}

func TestPermissionResolver_UnknownScopesIgnored(t *testing.T) {
	r := PermissionResolver{Resource: ResourceWorkflow}

	got := r.Resolve([]string{"", "workflow", "workflow:", "workflow:fly", "garbage::", "workflow:read"})

	assert.True(t, got.Can(ActionRead))
	assert.False(t, got.Can(ActionCreate))
	assert.False(t, got.Can(Action("fly")))
	assert.Len(t, got, len(CRUDActions))
}

func TestPermissionResolver_Wildcards(t *testing.T) {
	r := PermissionResolver{Resource: ResourceSourceControl}

	all := r.Resolve([]string{"sourceControl:*"})
	for _, a := range CRUDActions {
		assert.True(t, all.Can(a), "action %s", a)
	}

	global := r.Resolve([]string{"*"})
	assert.True(t, global.Equal(all))

	other := r.Resolve([]string{"workflow:*"})
	for _, a := range CRUDActions {
		assert.False(t, other.Can(a), "action %s", a)
	}
}

func TestPermissionResolver_EmptyScopesFollowDefaultPolicy(t *testing.T) {
	deny := PermissionResolver{Resource: ResourceWorkflow}.Resolve(nil)
	for _, a := range CRUDActions {
		assert.False(t, deny.Can(a))
	}

	allow := PermissionResolver{Resource: ResourceWorkflow, DefaultAllow: true}.Resolve([]string{})
	for _, a := range CRUDActions {
		assert.True(t, allow.Can(a))
	}

	// DefaultAllow only applies to an empty list.
	partial := PermissionResolver{Resource: ResourceWorkflow, DefaultAllow: true}.Resolve([]string{"workflow:read"})
	assert.True(t, partial.Can(ActionRead))
	assert.False(t, partial.Can(ActionDelete))
}

func TestPermissionResolver_CustomActions(t *testing.T) {
	r := PermissionResolver{
		Resource: ResourceWorkflow,
		Actions:  []Action{ActionRead, ActionShare, ActionExecute},
	}
	got := r.Resolve([]string{"workflow:share", "workflow:delete"})

	require.Equal(t, PermissionSet{ActionRead: false, ActionShare: true, ActionExecute: false}, got)
}

func TestPermissionResolver_OrderIndependent(t *testing.T) {
	r := PermissionResolver{Resource: ResourceWorkflow}
	scopes := []string{"workflow:read", "workflow:create", "credential:read", "unknown", "workflow:delete"}
	want := r.Resolve(scopes)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]string(nil), scopes...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		// duplicates must not matter either
		shuffled = append(shuffled, shuffled[0])

		got := r.Resolve(shuffled)
		require.True(t, want.Equal(got), "scopes %v resolved to %v, want %v", shuffled, got, want)
	}
}

func TestPermissionSet_Equal(t *testing.T) {
	a := PermissionSet{ActionRead: true, ActionUpdate: false}
	assert.True(t, a.Equal(PermissionSet{ActionUpdate: false, ActionRead: true}))
	assert.False(t, a.Equal(PermissionSet{ActionRead: true}))
	assert.False(t, a.Equal(PermissionSet{ActionRead: true, ActionDelete: false}))
	assert.False(t, a.Equal(PermissionSet{ActionRead: false, ActionUpdate: false}))
}
