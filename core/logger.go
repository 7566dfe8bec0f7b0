package core

// Logger is any service that can log messages.
// args may hold errors and extra data (e.g. map[string]interface{}).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies who a logged event is about (e.g. the monitoring session in use).
type Actor struct {
	ID    string
	Name  string
	Email string
}
