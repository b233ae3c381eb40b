package log

// Logger receives protocol events. Log is called on the hot path of every
// connection and from several goroutines, so implementations must be safe
// for concurrent use and must not block.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards events.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

// MultiLogger fans events out to several loggers in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger returns a MultiLogger over loggers, skipping nil and
// NoopLogger entries.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		switch l.(type) {
		case nil, NoopLogger, *NoopLogger:
			continue
		}
		m.loggers = append(m.loggers, l)
	}
	return m
}

func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
)
