package gate

import (
	"strings"
	"time"

	"github.com/gatehouse-app/gatehouse/backend/internal/models"
)

// Decision is the outcome of evaluating one request against the gate policy.
type Decision struct {
	// Reason is the bypass that applied; empty means block.
	Reason Reason
	// AccessError carries a failed access-form code for the next render
	// (AccessErrInvalidNonce or AccessErrInvalidPassword).
	AccessError string
	// IssueCookie is set when a token or password bypass succeeded and the
	// caller should install the signed cookie, then redirect with the
	// private-access parameters stripped.
	IssueCookie bool
}

// Evaluator decides whether a request passes an active gate and why. It is
// pure policy: no HTTP, no storage, clock injectable for tests.
type Evaluator struct {
	guard   *PrivateGuard
	siteLoc *time.Location
	now     func() time.Time
}

// NewEvaluator wires a policy evaluator. siteLoc is the fallback timezone for
// schedule rules that do not carry their own.
func NewEvaluator(guard *PrivateGuard, siteLoc *time.Location) *Evaluator {
	if siteLoc == nil {
		siteLoc = time.UTC
	}
	return &Evaluator{guard: guard, siteLoc: siteLoc, now: time.Now}
}

// Guard exposes the private-access guard for cookie issuing and form
// rendering.
func (e *Evaluator) Guard() *PrivateGuard { return e.guard }

// Active reports whether the gate currently applies at all. A disabled gate
// never blocks; an enabled one defers to the schedule and recurring rules
// when either of those toggles is on.
func (e *Evaluator) Active(s *models.GateSettings) bool {
	if !s.Enabled {
		return false
	}
	if !s.ScheduleEnabled && !s.RecurringEnabled {
		return true
	}

	now := e.now()
	if s.ScheduleEnabled {
		for _, w := range s.Windows() {
			if windowActive(now, w) {
				return true
			}
		}
	}
	if s.RecurringEnabled {
		for _, r := range s.Rules() {
			if recurringActive(r, now.UTC(), e.siteLoc) {
				return true
			}
		}
	}
	return false
}

// Evaluate runs the bypass policy in order, first match wins. The order is
// deliberate; in particular an anonymous REST caller with allow_rest off is
// blocked before the role/IP/path whitelists are consulted.
func (e *Evaluator) Evaluate(req RequestInfo, s *models.GateSettings) Decision {
	if req.IsCLI {
		return Decision{Reason: ReasonCLI}
	}
	if req.IsCron {
		return Decision{Reason: ReasonCron}
	}
	if req.IsAdmin && !req.IsAdminAjax {
		return Decision{Reason: ReasonAdmin}
	}
	if req.IsAdminAjax && s.AllowAdminAjax {
		return Decision{Reason: ReasonAdminAjax}
	}
	if req.IsLoginPage {
		return Decision{Reason: ReasonLoginPage}
	}
	if req.IsEditor && s.EditorBypass {
		return Decision{Reason: ReasonEditorPreview}
	}

	if d := e.privateBypass(req, s); d.Reason != ReasonNone || d.AccessError != "" {
		return d
	}

	if req.IsREST {
		if req.Authenticated {
			return Decision{Reason: ReasonRestLoggedIn}
		}
		if s.AllowRest {
			return Decision{Reason: ReasonRestAllowed}
		}
		// REST callers never reach the whitelist checks below.
		return Decision{}
	}

	if req.Authenticated {
		if s.ExcludeAdmin && req.HasRole("admin") {
			return Decision{Reason: ReasonUserAllowed}
		}
		for _, role := range s.RoleList() {
			if req.HasRole(role) {
				return Decision{Reason: ReasonUserAllowed}
			}
		}
	}

	for _, ip := range s.IPList() {
		if ip == req.ClientIP {
			return Decision{Reason: ReasonIPWhitelist}
		}
	}

	for _, prefix := range s.PathList() {
		if prefix != "" && strings.HasPrefix(req.Path, prefix) {
			return Decision{Reason: ReasonPathWhitelist}
		}
	}

	return Decision{}
}

// privateBypass checks the three private-access mechanisms in order: signed
// cookie, URL bearer token, password form submission.
func (e *Evaluator) privateBypass(req RequestInfo, s *models.GateSettings) Decision {
	if e.guard == nil || !e.guard.Enabled() {
		return Decision{}
	}

	if e.guard.ValidCookie(s, req.PrivateCookie) {
		return Decision{Reason: ReasonPrivateCookie}
	}

	if req.QueryToken != "" && e.guard.ValidToken(s, req.QueryToken) {
		return Decision{Reason: ReasonPrivateToken, IssueCookie: true}
	}

	if req.PostedPassword != "" {
		if !e.guard.VerifyNonce(req.PostedNonce, e.now()) {
			return Decision{AccessError: AccessErrInvalidNonce}
		}
		if !e.guard.VerifyPassword(s, req.PostedPassword) {
			return Decision{AccessError: AccessErrInvalidPassword}
		}
		return Decision{Reason: ReasonPrivatePassword, IssueCookie: true}
	}

	return Decision{}
}
