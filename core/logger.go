package core

// Logger is any leveled logger.
// expected args: error, map[string]interface{}, RunID
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// RunID identifies a single maintenance run across log lines.
type RunID string
