package core

// Logger is the app-wide structured logger.
// args may carry errors, maps of extras and an Actor identifying who triggered the entry.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies the admin (or system job) performing an operation.
type Actor struct {
	ID    string
	Name  string
	Email string
}
