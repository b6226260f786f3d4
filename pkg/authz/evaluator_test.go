package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFacts is an in-memory DomainFacts for evaluator tests.
type fakeFacts struct {
	userPrograms   map[string][]string
	assignees      map[string]string
	shares         map[string]map[string]bool
	clientPrograms map[string]map[EnrollmentStatus][]string
}

func newFakeFacts() *fakeFacts {
	return &fakeFacts{
		userPrograms:   map[string][]string{},
		assignees:      map[string]string{},
		shares:         map[string]map[string]bool{},
		clientPrograms: map[string]map[EnrollmentStatus][]string{},
	}
}

func (f *fakeFacts) UserProgramIDs(ctx context.Context, userID string) ([]string, error) {
	return f.userPrograms[userID], nil
}

func (f *fakeFacts) ClientAssigneeID(ctx context.Context, clientID string) (string, error) {
	return f.assignees[clientID], nil
}

func (f *fakeFacts) ClientSharedWith(ctx context.Context, clientID, userID string) (bool, error) {
	return f.shares[clientID][userID], nil
}

func (f *fakeFacts) ClientProgramIDs(ctx context.Context, clientID string, statuses ...EnrollmentStatus) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, st := range statuses {
		for _, id := range f.clientPrograms[clientID][st] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeFacts) enroll(clientID, programID string, status EnrollmentStatus) {
	if f.clientPrograms[clientID] == nil {
		f.clientPrograms[clientID] = map[EnrollmentStatus][]string{}
	}
	f.clientPrograms[clientID][status] = append(f.clientPrograms[clientID][status], programID)
}

func caseManager(id string) Subject {
	return Subject{ID: id, TenantID: "tenant-1", Role: RoleCaseManager}
}

func TestEvaluateScopeAll(t *testing.T) {
	e := NewEvaluator(newFakeFacts())

	v, err := e.Evaluate(context.Background(), caseManager("u1"), ScopeAll, CheckInput{})
	require.NoError(t, err)
	assert.True(t, v.Satisfied)
	assert.Equal(t, ReasonScopeAll, v.Reason)
}

func TestEvaluateScopeNone(t *testing.T) {
	e := NewEvaluator(newFakeFacts())

	v, err := e.Evaluate(context.Background(), caseManager("u1"), ScopeNone, CheckInput{
		Resource: ResourceReport, Action: ActionRead,
	})
	require.NoError(t, err)
	assert.False(t, v.Satisfied)
	assert.Equal(t, ReasonScopeNone, v.Reason)
	assert.NotEmpty(t, v.Message)
}

func TestEvaluateProgramScope(t *testing.T) {
	facts := newFakeFacts()
	facts.userPrograms["u1"] = []string{"p1", "p2"}
	e := NewEvaluator(facts)
	ctx := context.Background()

	t.Run("overlap allows", func(t *testing.T) {
		v, err := e.Evaluate(ctx, caseManager("u1"), ScopeProgram, CheckInput{ProgramIDs: []string{"p2", "p9"}})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonProgramMatch, v.Reason)
	})

	t.Run("no overlap denies", func(t *testing.T) {
		v, err := e.Evaluate(ctx, caseManager("u1"), ScopeProgram, CheckInput{ProgramIDs: []string{"p9"}})
		require.NoError(t, err)
		assert.False(t, v.Satisfied)
		assert.Equal(t, ReasonNoProgramOverlap, v.Reason)
	})

	t.Run("missing context allows", func(t *testing.T) {
		v, err := e.Evaluate(ctx, caseManager("u1"), ScopeProgram, CheckInput{})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonNoContext, v.Reason)
	})

	t.Run("admin bypasses membership", func(t *testing.T) {
		admin := Subject{ID: "a1", TenantID: "tenant-1", Role: RoleAdmin}
		v, err := e.Evaluate(ctx, admin, ScopeProgram, CheckInput{ProgramIDs: []string{"p9"}})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonAdminBypass, v.Reason)
	})
}

func TestEvaluateAssignedScope(t *testing.T) {
	ctx := context.Background()

	t.Run("assignee allowed", func(t *testing.T) {
		facts := newFakeFacts()
		facts.assignees["c1"] = "u1"
		e := NewEvaluator(facts)

		v, err := e.Evaluate(ctx, caseManager("u1"), ScopeAssigned, CheckInput{ClientID: "c1"})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonAssigned, v.Reason)
	})

	t.Run("share allowed", func(t *testing.T) {
		facts := newFakeFacts()
		facts.assignees["c1"] = "other"
		facts.shares["c1"] = map[string]bool{"u1": true}
		e := NewEvaluator(facts)

		v, err := e.Evaluate(ctx, caseManager("u1"), ScopeAssigned, CheckInput{ClientID: "c1"})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonShared, v.Reason)
	})

	t.Run("program overlap with completed enrollment allowed", func(t *testing.T) {
		facts := newFakeFacts()
		facts.assignees["c1"] = "other"
		facts.userPrograms["u1"] = []string{"p1"}
		facts.enroll("c1", "p1", EnrollmentCompleted)
		e := NewEvaluator(facts)

		v, err := e.Evaluate(ctx, caseManager("u1"), ScopeAssigned, CheckInput{ClientID: "c1"})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonEnrolledOverlap, v.Reason)
	})

	t.Run("unrelated client denied with message", func(t *testing.T) {
		facts := newFakeFacts()
		facts.assignees["c1"] = "other"
		e := NewEvaluator(facts)

		v, err := e.Evaluate(ctx, caseManager("u1"), ScopeAssigned, CheckInput{ClientID: "c1"})
		require.NoError(t, err)
		assert.False(t, v.Satisfied)
		assert.Equal(t, ReasonNotAssigned, v.Reason)
		assert.Contains(t, v.Message, "assigned to you")
	})

	t.Run("owner match", func(t *testing.T) {
		e := NewEvaluator(newFakeFacts())

		v, err := e.Evaluate(ctx, caseManager("u1"), ScopeAssigned, CheckInput{OwnerID: "u1"})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonOwner, v.Reason)

		v, err = e.Evaluate(ctx, caseManager("u1"), ScopeAssigned, CheckInput{OwnerID: "u2"})
		require.NoError(t, err)
		assert.False(t, v.Satisfied)
		assert.Equal(t, ReasonOwnerMismatch, v.Reason)
	})

	t.Run("no context allowed", func(t *testing.T) {
		e := NewEvaluator(newFakeFacts())

		v, err := e.Evaluate(ctx, caseManager("u1"), ScopeAssigned, CheckInput{})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonNoContext, v.Reason)
	})
}

func TestEvaluateSessionScope(t *testing.T) {
	ctx := context.Background()
	facilitator := Subject{ID: "f1", TenantID: "tenant-1", Role: RoleFacilitator}

	t.Run("active enrollment wins", func(t *testing.T) {
		facts := newFakeFacts()
		facts.userPrograms["f1"] = []string{"p1"}
		facts.enroll("c1", "p1", EnrollmentEnrolled)
		e := NewEvaluator(facts)

		v, err := e.Evaluate(ctx, facilitator, ScopeSession, CheckInput{ClientID: "c1"})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonActiveSession, v.Reason)
	})

	t.Run("completed enrollment falls back", func(t *testing.T) {
		facts := newFakeFacts()
		facts.userPrograms["f1"] = []string{"p1"}
		facts.enroll("c1", "p1", EnrollmentCompleted)
		e := NewEvaluator(facts)

		v, err := e.Evaluate(ctx, facilitator, ScopeSession, CheckInput{ClientID: "c1"})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonEnrolledOverlap, v.Reason)
	})

	t.Run("no overlap denied", func(t *testing.T) {
		facts := newFakeFacts()
		facts.userPrograms["f1"] = []string{"p1"}
		facts.enroll("c1", "p9", EnrollmentEnrolled)
		e := NewEvaluator(facts)

		v, err := e.Evaluate(ctx, facilitator, ScopeSession, CheckInput{ClientID: "c1"})
		require.NoError(t, err)
		assert.False(t, v.Satisfied)
		assert.Equal(t, ReasonNoActiveSession, v.Reason)
		assert.Contains(t, v.Message, "no active session")
	})

	t.Run("missing client context allowed", func(t *testing.T) {
		e := NewEvaluator(newFakeFacts())

		v, err := e.Evaluate(ctx, facilitator, ScopeSession, CheckInput{})
		require.NoError(t, err)
		assert.True(t, v.Satisfied)
		assert.Equal(t, ReasonNoContext, v.Reason)
	})
}

func TestEvaluateUnknownScopeDenies(t *testing.T) {
	e := NewEvaluator(newFakeFacts())

	v, err := e.Evaluate(context.Background(), caseManager("u1"), Scope("bogus"), CheckInput{})
	require.NoError(t, err)
	assert.False(t, v.Satisfied)
}
