package signal

// settings collects construction options for a Signal.
type settings struct {
	name   string
	logger Logger
	hooks  []Hook
}

func defaultSettings() *settings {
	return &settings{
		name:   "signal",
		logger: NewDefaultLogger(),
	}
}

// Option configures a Signal at construction time.
type Option func(*settings)

// WithName sets the name used in log lines and passed to observability
// adapters. Default: "signal".
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(l Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHook attaches a lifecycle hook. May be given multiple times; hooks are
// notified in the order they were attached.
func WithHook(h Hook) Option {
	return func(s *settings) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}
