package rbac

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	ObserveAuthz(action string, allowed bool)
}

// DefaultLookupTimeout bounds one shared registry read.
const DefaultLookupTimeout = 5 * time.Second

// Gate answers "may this user perform any of these actions". Every check
// reads the registry again; concurrent checks for the same user share one
// read but nothing is retained between checks.
type Gate struct {
	service  *Service
	recorder DecisionRecorder
	group    singleflight.Group
	timeout  time.Duration
}

// NewGate builds a Gate. recorder may be nil.
func NewGate(service *Service, recorder DecisionRecorder) *Gate {
	return &Gate{service: service, recorder: recorder, timeout: DefaultLookupTimeout}
}

// SetLookupTimeout changes the bound on shared registry reads. Non-positive
// values keep the current bound.
func (g *Gate) SetLookupTimeout(d time.Duration) {
	if d > 0 {
		g.timeout = d
	}
}

// Subject resolves the identity and permission set of userID.
// Unknown or inactive users yield ErrNotFound. The shared read outlives a
// cancelled caller but never the lookup timeout; each caller still returns
// when its own context ends.
func (g *Gate) Subject(ctx context.Context, userID int64) (Subject, error) {
	if userID <= 0 {
		return Subject{}, ErrNotFound
	}
	key := strconv.FormatInt(userID, 10)
	ch := g.group.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return g.service.LoadSubject(lookupCtx, userID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Subject{}, res.Err
		}
		return res.Val.(Subject), nil
	case <-ctx.Done():
		return Subject{}, ctx.Err()
	}
}

// Check resolves the subject and reports whether it holds any of required.
// An empty requirement is allowed without a lookup. An unresolvable user is
// denied without error; store failures are returned and never allow.
func (g *Gate) Check(ctx context.Context, userID int64, required ...string) (Subject, bool, error) {
	if len(required) == 0 {
		return Subject{}, true, nil
	}
	subject, err := g.Subject(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.observe(required, false)
			return Subject{}, false, nil
		}
		return Subject{}, false, err
	}
	allowed := subject.Permissions.Allows(required...)
	g.observe(required, allowed)
	return subject, allowed, nil
}

// CheckAll is Check with every required action demanded.
func (g *Gate) CheckAll(ctx context.Context, userID int64, required ...string) (Subject, bool, error) {
	if len(required) == 0 {
		return Subject{}, true, nil
	}
	subject, err := g.Subject(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.observe(required, false)
			return Subject{}, false, nil
		}
		return Subject{}, false, err
	}
	allowed := subject.Permissions.AllowsAll(required...)
	g.observe(required, allowed)
	return subject, allowed, nil
}

// Authorize is the boolean form of Check.
func (g *Gate) Authorize(ctx context.Context, userID int64, required ...string) (bool, error) {
	_, allowed, err := g.Check(ctx, userID, required...)
	return allowed, err
}

// observe labels a decision with every required action, comma-joined.
func (g *Gate) observe(required []string, allowed bool) {
	if g.recorder == nil {
		return
	}
	g.recorder.ObserveAuthz(strings.Join(required, ","), allowed)
}
