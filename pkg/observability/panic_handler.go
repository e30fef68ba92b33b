package observability

import "runtime/debug"

// RecoverPanic recovers from a panic and logs it at Error level with the
// panic value, stack trace, and where it happened. Call in a defer:
//
//	defer observability.RecoverPanic(logger, "membership check")
//
// The panic is not re-raised; the goroutine returns normally.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("panic recovered")
	}
}
