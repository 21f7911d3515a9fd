// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cort

// coreOptions holds configuration resolved from CoreOption values passed
// to NewCore.
type coreOptions struct {
	logger         Logger
	maxEvents      int
	metricsEnabled bool
}

// CoreOption configures a Core instance.
type CoreOption interface {
	applyCore(*coreOptions) error
}

type coreOptionFunc func(*coreOptions) error

func (f coreOptionFunc) applyCore(opts *coreOptions) error {
	return f(opts)
}

// WithLogger sets the diagnostic logger used for rare events (poller
// init failure, registration failures, teardown, Repeater stalls).
// Defaults to a no-op
// logger; never invoked from the timer hot path.
func WithLogger(logger Logger) CoreOption {
	return coreOptionFunc(func(opts *coreOptions) error {
		opts.logger = logger
		return nil
	})
}

// WithMaxEvents sets the OS multiplexer's per-wake event buffer size
// (the number of ready fds one Core.RunOnce pass can dispatch).
func WithMaxEvents(n int) CoreOption {
	return coreOptionFunc(func(opts *coreOptions) error {
		opts.maxEvents = n
		return nil
	})
}

// WithMetrics enables timer-latency and heap/fd gauge instrumentation,
// retrievable via Core.Metrics(). Zero-cost when disabled. Repeater
// throughput is not covered by this option or by Core.Metrics(); it is
// sampled per Repeater via Repeater.EnableTPS and Repeater.TPS.
func WithMetrics(enabled bool) CoreOption {
	return coreOptionFunc(func(opts *coreOptions) error {
		opts.metricsEnabled = enabled
		return nil
	})
}

// resolveCoreOptions applies CoreOption values over the defaults.
func resolveCoreOptions(opts []CoreOption) (*coreOptions, error) {
	cfg := &coreOptions{
		logger:    NewNoOpLogger(),
		maxEvents: 256,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyCore(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
