package di

import "go.uber.org/zap"

// containerConfig accumulates Option effects before New finishes
// constructing the Container. deferred options need a *Container to act
// on (a fallback container) so they run last, in registration order.
type containerConfig struct {
	registerBuiltinWrappers bool
	rules                   *ResolutionRules
	errFmt                  ErrorFormatter
	logger                  *zap.Logger
	deferred                []func(*Container)
}

func (cfg *containerConfig) apply(c *Container) {
	if cfg.rules != nil {
		c.rules = *cfg.rules
	}
	if cfg.errFmt != nil {
		c.errFmt = cfg.errFmt
	}
	if cfg.logger != nil {
		c.logger = cfg.logger
	}
	for _, fn := range cfg.deferred {
		fn(c)
	}
}

// Option configures a Container at construction time, following the
// functional-options convention the pack's service constructors use
// throughout.
type Option func(*containerConfig)

// WithLogger swaps the container's zap.Logger. New defaults to
// zap.NewNop(), matching libraries in the pack that stay silent unless a
// caller opts into structured logging.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *containerConfig) { cfg.logger = logger }
}

// WithErrorFormatter overrides how ContainerError messages are rendered.
func WithErrorFormatter(fmtr ErrorFormatter) Option {
	return func(cfg *containerConfig) { cfg.errFmt = fmtr }
}

// WithRules overrides one or more resolution rules. Unset fields fall
// back to defaultRules's behavior only if WithRules itself is never
// called; calling it replaces the whole ResolutionRules value, so build
// it by copying defaultRules() and editing the fields you need.
func WithRules(rules ResolutionRules) Option {
	return func(cfg *containerConfig) { cfg.rules = &rules }
}

// AddUnregisteredServiceRule appends rule to the container's
// UnregisteredServices list, consulted in append order on a resolution
// miss.
func AddUnregisteredServiceRule(rule UnregisteredServiceRule) Option {
	return func(cfg *containerConfig) {
		if cfg.rules == nil {
			r := defaultRules()
			cfg.rules = &r
		}
		cfg.rules.UnregisteredServices = append(cfg.rules.UnregisteredServices, rule)
	}
}

// Minimal skips installing the built-in enumerable/array
// unregistered-service rule, so an unregistered []T fails to resolve
// instead of being synthesized. Func, Lazy, Many, Meta and
// DebugExpression are plain functions and work either way.
func Minimal() Option {
	return func(cfg *containerConfig) { cfg.registerBuiltinWrappers = false }
}
