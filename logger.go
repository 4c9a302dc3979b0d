package mqtt

import (
	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug is the debug log level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the info log level.
	LogLevelInfo
	// LogLevelWarn is the warn log level.
	LogLevelWarn
	// LogLevelError is the error log level.
	LogLevelError
	// LogLevelNone disables all logging.
	LogLevelNone
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a level name (case-insensitive) to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	if s == "none" || s == "NONE" {
		return LogLevelNone, nil
	}
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return LogLevelNone, ErrInvalidParameter
	}
	return fromLogrusLevel(lvl), nil
}

// LogFields represents key-value pairs for structured logging.
type LogFields map[string]any

// Logger defines the interface for logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, fields LogFields)

	// Info logs an info message.
	Info(msg string, fields LogFields)

	// Warn logs a warning message.
	Warn(msg string, fields LogFields)

	// Error logs an error message.
	Error(msg string, fields LogFields)

	// WithFields returns a new logger with the given fields added.
	WithFields(fields LogFields) Logger

	// Level returns the current log level.
	Level() LogLevel

	// SetLevel sets the log level.
	SetLevel(level LogLevel)
}

// NoOpLogger is a logger that does nothing.
type NoOpLogger struct {
	level LogLevel
}

// NewNoOpLogger creates a new no-op logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{level: LogLevelNone}
}

// Debug does nothing.
func (n *NoOpLogger) Debug(_ string, _ LogFields) {}

// Info does nothing.
func (n *NoOpLogger) Info(_ string, _ LogFields) {}

// Warn does nothing.
func (n *NoOpLogger) Warn(_ string, _ LogFields) {}

// Error does nothing.
func (n *NoOpLogger) Error(_ string, _ LogFields) {}

// WithFields returns the same logger.
func (n *NoOpLogger) WithFields(_ LogFields) Logger {
	return n
}

// Level returns the log level.
func (n *NoOpLogger) Level() LogLevel {
	return n.level
}

// SetLevel sets the log level.
func (n *NoOpLogger) SetLevel(level LogLevel) {
	n.level = level
}

// LogrusLogger adapts a logrus logger to Logger.
// Loggers derived with WithFields share the level of their parent.
type LogrusLogger struct {
	entry *logrus.Entry
	level *LogLevel
}

// NewLogrusLogger creates a Logger writing through l. A nil l uses the logrus standard logger.
func NewLogrusLogger(l *logrus.Logger, level LogLevel) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	if level < LogLevelNone {
		l.SetLevel(toLogrusLevel(level))
	}
	return &LogrusLogger{entry: logrus.NewEntry(l), level: &level}
}

// Debug logs a debug message.
func (s *LogrusLogger) Debug(msg string, fields LogFields) {
	if *s.level <= LogLevelDebug {
		s.entry.WithFields(logrus.Fields(fields)).Debug(msg)
	}
}

// Info logs an info message.
func (s *LogrusLogger) Info(msg string, fields LogFields) {
	if *s.level <= LogLevelInfo {
		s.entry.WithFields(logrus.Fields(fields)).Info(msg)
	}
}

// Warn logs a warning message.
func (s *LogrusLogger) Warn(msg string, fields LogFields) {
	if *s.level <= LogLevelWarn {
		s.entry.WithFields(logrus.Fields(fields)).Warn(msg)
	}
}

// Error logs an error message.
func (s *LogrusLogger) Error(msg string, fields LogFields) {
	if *s.level <= LogLevelError {
		s.entry.WithFields(logrus.Fields(fields)).Error(msg)
	}
}

// WithFields returns a new logger with the given fields added.
func (s *LogrusLogger) WithFields(fields LogFields) Logger {
	return &LogrusLogger{
		entry: s.entry.WithFields(logrus.Fields(fields)),
		level: s.level,
	}
}

// Level returns the current log level.
func (s *LogrusLogger) Level() LogLevel {
	return *s.level
}

// SetLevel sets the log level.
func (s *LogrusLogger) SetLevel(level LogLevel) {
	*s.level = level
	if level < LogLevelNone {
		s.entry.Logger.SetLevel(toLogrusLevel(level))
	}
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func fromLogrusLevel(level logrus.Level) LogLevel {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return LogLevelDebug
	case logrus.InfoLevel:
		return LogLevelInfo
	case logrus.WarnLevel:
		return LogLevelWarn
	default:
		return LogLevelError
	}
}

// Standard field names for MQTT logging.
const (
	// LogFieldClientID is the client ID field.
	LogFieldClientID = "client_id"

	// LogFieldTopic is the topic field.
	LogFieldTopic = "topic"

	// LogFieldPacketID is the packet ID field.
	LogFieldPacketID = "packet_id"

	// LogFieldPacketType is the packet type field.
	LogFieldPacketType = "packet_type"

	// LogFieldQoS is the QoS field.
	LogFieldQoS = "qos"

	// LogFieldReturnCode is the CONNACK or SUBACK return code field.
	LogFieldReturnCode = "return_code"

	// LogFieldError is the error field.
	LogFieldError = "error"

	// LogFieldRemoteAddr is the remote address field.
	LogFieldRemoteAddr = "remote_addr"

	// LogFieldDuration is the duration field.
	LogFieldDuration = "duration"

	// LogFieldBytes is the bytes field.
	LogFieldBytes = "bytes"
)
