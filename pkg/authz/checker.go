package authz

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/casehub/accesscore/pkg/observability"
)

// Checker combines the permission table, the scope evaluator and
// admin-contact resolution into one allow/deny decision. It performs no
// writes.
type Checker struct {
	evaluator   *Evaluator
	contacts    ContactDirectory
	delegations SettingsDelegations
	cache       *DecisionCache
	metrics     *observability.Metrics
	log         *logrus.Logger
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithDecisionCache enables caching of check results.
func WithDecisionCache(cache *DecisionCache) CheckerOption {
	return func(c *Checker) { c.cache = cache }
}

// WithDelegations enables the settings-delegation grant path.
func WithDelegations(d SettingsDelegations) CheckerOption {
	return func(c *Checker) { c.delegations = d }
}

// WithMetrics records check outcomes on the given metrics.
func WithMetrics(m *observability.Metrics) CheckerOption {
	return func(c *Checker) { c.metrics = m }
}

// NewChecker creates a permission checker. contacts may be nil, in which
// case denials carry the generic contact phrase.
func NewChecker(facts DomainFacts, contacts ContactDirectory, log *logrus.Logger, opts ...CheckerOption) *Checker {
	if log == nil {
		log = logrus.New()
	}
	c := &Checker{
		evaluator: NewEvaluator(facts),
		contacts:  contacts,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// genericAdminContact is shown when the tenant has no resolvable admin.
const genericAdminContact = "your administrator"

// Check decides whether the subject may perform the operation described
// by in. Policy denials are returned as values; only infrastructure
// failures surface as errors.
func (c *Checker) Check(ctx context.Context, sub Subject, in CheckInput) (Decision, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, sub, in); ok {
			return cached, nil
		}
	}

	decision, err := c.check(ctx, sub, in)
	if err != nil {
		return Decision{}, err
	}

	if c.metrics != nil {
		c.metrics.RecordPermissionCheck(decision.Allowed, decision.Reason)
	}
	if c.cache != nil {
		c.cache.Put(ctx, sub, in, decision)
	}
	return decision, nil
}

func (c *Checker) check(ctx context.Context, sub Subject, in CheckInput) (Decision, error) {
	scope, ok := Lookup(sub.Role, in.Resource, in.Action)
	if !ok {
		if d, handled, err := c.checkDelegation(ctx, sub, in); err != nil {
			return Decision{}, err
		} else if handled {
			return d, nil
		}
		return c.deny(ctx, sub, Decision{
			Reason: ReasonNoPermission,
			UserMessage: fmt.Sprintf("Your role does not include permission to %s %s records.",
				in.Action, in.Resource),
		}), nil
	}

	verdict, err := c.evaluator.Evaluate(ctx, sub, scope, in)
	if err != nil {
		return Decision{}, err
	}

	if verdict.Satisfied {
		return Decision{Allowed: true, Scope: scope, Reason: verdict.Reason}, nil
	}

	msg := verdict.Message
	if msg == "" {
		msg = "You do not have access to this record."
	}
	return c.deny(ctx, sub, Decision{Scope: scope, Reason: verdict.Reason, UserMessage: msg}), nil
}

// checkDelegation lets a settings action through on an unexpired
// delegation when the table has no entry for the role. handled is false
// when the action is not delegable or no delegation layer is configured.
func (c *Checker) checkDelegation(ctx context.Context, sub Subject, in CheckInput) (Decision, bool, error) {
	if c.delegations == nil || in.Resource != ResourceSettings {
		return Decision{}, false, nil
	}
	capability, ok := delegationForAction(in.Action)
	if !ok {
		return Decision{}, false, nil
	}
	allowed, err := c.delegations.Can(ctx, sub.TenantID, sub.ID, capability)
	if err != nil {
		return Decision{}, false, fmt.Errorf("resolving settings delegation: %w", err)
	}
	if !allowed {
		return Decision{}, false, nil
	}
	return Decision{Allowed: true, Scope: ScopeAll, Reason: ReasonDelegated}, true, nil
}

// deny attaches the tenant's admin contact to a denial.
func (c *Checker) deny(ctx context.Context, sub Subject, d Decision) Decision {
	d.Allowed = false
	d.AdminContact = c.adminContact(ctx, sub.TenantID)
	return d
}

// adminContact resolves the earliest-created active admin-tier user in
// the tenant, formatted "Name (email)" or bare email. A lookup failure
// degrades to the generic phrase; it never fails the check.
func (c *Checker) adminContact(ctx context.Context, tenantID string) string {
	if c.contacts == nil {
		return genericAdminContact
	}
	contact, err := c.contacts.EarliestActiveAdmin(ctx, tenantID)
	if err != nil {
		c.log.WithError(err).WithField("tenant_id", tenantID).Warn("admin contact lookup failed")
		return genericAdminContact
	}
	if contact == nil || contact.Email == "" {
		return genericAdminContact
	}
	if contact.Name != "" {
		return fmt.Sprintf("%s (%s)", contact.Name, contact.Email)
	}
	return contact.Email
}
