package ratelimit

import "time"

// LimitConfig allows Max requests per sliding Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps scopes to the limits enforced for them.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// PolicyConfig holds per-minute budgets for each scope.
type PolicyConfig struct {
	GlobalPerMinute  int64
	ReadPerMinute    int64
	WritePerMinute   int64
	ResolvePerMinute int64
}

// NewPolicy builds a policy from per-minute budgets. Writes also get an
// hourly cap of thirty minutes' budget. Zero budgets leave a scope unlimited.
func NewPolicy(cfg PolicyConfig) *Policy {
	p := &Policy{Limits: make(map[Scope][]LimitConfig)}

	add := func(scope Scope, perMinute int64) {
		if perMinute > 0 {
			p.Limits[scope] = append(p.Limits[scope], LimitConfig{Window: time.Minute, Max: perMinute})
		}
	}

	add(ScopeGlobal, cfg.GlobalPerMinute)
	add(ScopeRead, cfg.ReadPerMinute)
	add(ScopeWrite, cfg.WritePerMinute)
	add(ScopeResolve, cfg.ResolvePerMinute)

	if cfg.WritePerMinute > 0 {
		p.Limits[ScopeWrite] = append(p.Limits[ScopeWrite], LimitConfig{Window: time.Hour, Max: cfg.WritePerMinute * 30})
	}

	return p
}
