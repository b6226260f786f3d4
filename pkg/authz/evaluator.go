package authz

import (
	"context"
	"fmt"
)

// Evaluator resolves whether a scoped permission is satisfied for a
// concrete resource instance. It is a pure function of its inputs plus
// read-only DomainFacts queries.
type Evaluator struct {
	facts DomainFacts
}

// NewEvaluator creates a scope evaluator over the given facts source.
func NewEvaluator(facts DomainFacts) *Evaluator {
	return &Evaluator{facts: facts}
}

// Evaluate resolves one scoped check. The switch is exhaustive over the
// scope vocabulary; an unknown scope denies.
func (e *Evaluator) Evaluate(ctx context.Context, sub Subject, scope Scope, in CheckInput) (Verdict, error) {
	switch scope {
	case ScopeAll:
		return Verdict{Satisfied: true, Reason: ReasonScopeAll}, nil
	case ScopeProgram:
		return e.evaluateProgram(ctx, sub, in)
	case ScopeAssigned:
		return e.evaluateAssigned(ctx, sub, in)
	case ScopeSession:
		return e.evaluateSession(ctx, sub, in)
	case ScopeNone:
		return Verdict{
			Satisfied: false,
			Reason:    ReasonScopeNone,
			Message:   fmt.Sprintf("Your role does not permit %s on %s.", in.Action, in.Resource),
		}, nil
	default:
		return Verdict{
			Satisfied: false,
			Reason:    ReasonScopeNone,
			Message:   "Your role does not permit this operation.",
		}, nil
	}
}

func (e *Evaluator) evaluateProgram(ctx context.Context, sub Subject, in CheckInput) (Verdict, error) {
	if sub.Role.IsAdminTier() {
		return Verdict{Satisfied: true, Reason: ReasonAdminBypass}, nil
	}
	if len(in.ProgramIDs) == 0 {
		// Permissive default: no program context supplied. Callers must
		// pass ProgramIDs whenever the target is program-bound.
		return Verdict{Satisfied: true, Reason: ReasonNoContext}, nil
	}

	memberships, err := e.facts.UserProgramIDs(ctx, sub.ID)
	if err != nil {
		return Verdict{}, fmt.Errorf("resolving program memberships: %w", err)
	}
	if intersects(in.ProgramIDs, memberships) {
		return Verdict{Satisfied: true, Reason: ReasonProgramMatch}, nil
	}
	return Verdict{
		Satisfied: false,
		Reason:    ReasonNoProgramOverlap,
		Message:   "You can only access records in your own programs.",
	}, nil
}

func (e *Evaluator) evaluateAssigned(ctx context.Context, sub Subject, in CheckInput) (Verdict, error) {
	if sub.Role.IsAdminTier() {
		return Verdict{Satisfied: true, Reason: ReasonAdminBypass}, nil
	}

	if in.ClientID != "" {
		assignee, err := e.facts.ClientAssigneeID(ctx, in.ClientID)
		if err != nil {
			return Verdict{}, fmt.Errorf("resolving client assignee: %w", err)
		}
		if assignee == sub.ID {
			return Verdict{Satisfied: true, Reason: ReasonAssigned}, nil
		}

		shared, err := e.facts.ClientSharedWith(ctx, in.ClientID, sub.ID)
		if err != nil {
			return Verdict{}, fmt.Errorf("resolving client shares: %w", err)
		}
		if shared {
			return Verdict{Satisfied: true, Reason: ReasonShared}, nil
		}

		overlap, err := e.clientProgramOverlap(ctx, sub.ID, in.ClientID, EnrollmentEnrolled, EnrollmentCompleted)
		if err != nil {
			return Verdict{}, err
		}
		if overlap {
			return Verdict{Satisfied: true, Reason: ReasonEnrolledOverlap}, nil
		}

		return Verdict{
			Satisfied: false,
			Reason:    ReasonNotAssigned,
			Message:   "Not assigned to this client. You can only access clients assigned to you.",
		}, nil
	}

	if in.OwnerID != "" {
		if in.OwnerID == sub.ID {
			return Verdict{Satisfied: true, Reason: ReasonOwner}, nil
		}
		return Verdict{
			Satisfied: false,
			Reason:    ReasonOwnerMismatch,
			Message:   "You can only access records you own.",
		}, nil
	}

	// Neither a client nor an owner in context: vacuously satisfied.
	return Verdict{Satisfied: true, Reason: ReasonNoContext}, nil
}

func (e *Evaluator) evaluateSession(ctx context.Context, sub Subject, in CheckInput) (Verdict, error) {
	if sub.Role.IsAdminTier() {
		return Verdict{Satisfied: true, Reason: ReasonAdminBypass}, nil
	}
	if in.ClientID == "" {
		return Verdict{Satisfied: true, Reason: ReasonNoContext}, nil
	}

	// Active session first: the client must currently be ENROLLED in one
	// of the user's programs.
	active, err := e.clientProgramOverlap(ctx, sub.ID, in.ClientID, EnrollmentEnrolled)
	if err != nil {
		return Verdict{}, err
	}
	if active {
		return Verdict{Satisfied: true, Reason: ReasonActiveSession}, nil
	}

	// Fall back to the broader overlap the assigned branch uses.
	overlap, err := e.clientProgramOverlap(ctx, sub.ID, in.ClientID, EnrollmentEnrolled, EnrollmentCompleted)
	if err != nil {
		return Verdict{}, err
	}
	if overlap {
		return Verdict{Satisfied: true, Reason: ReasonEnrolledOverlap}, nil
	}

	return Verdict{
		Satisfied: false,
		Reason:    ReasonNoActiveSession,
		Message:   "This client has no active session in your programs.",
	}, nil
}

func (e *Evaluator) clientProgramOverlap(ctx context.Context, userID, clientID string, statuses ...EnrollmentStatus) (bool, error) {
	clientPrograms, err := e.facts.ClientProgramIDs(ctx, clientID, statuses...)
	if err != nil {
		return false, fmt.Errorf("resolving client enrollments: %w", err)
	}
	if len(clientPrograms) == 0 {
		return false, nil
	}
	memberships, err := e.facts.UserProgramIDs(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("resolving program memberships: %w", err)
	}
	return intersects(clientPrograms, memberships), nil
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
