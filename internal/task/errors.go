package task

import "fmt"

// ErrorKind classifies failures reported by a worker.
type ErrorKind uint8

const (
	// KindGeneric covers ordinary handler errors with no more specific class.
	KindGeneric ErrorKind = iota
	// KindRuntime marks crashes inside the worker (recovered panics).
	KindRuntime
	// KindInvalidUsage marks malformed payloads or misuse of a handler.
	KindInvalidUsage
)

func (k ErrorKind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindRuntime:
		return "runtime"
	case KindInvalidUsage:
		return "invalid-usage"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// WorkerError is a failure that happened on the worker goroutine, rebuilt on
// the scheduling side from the reply's kind, message and captured stack so
// callers can branch on Kind instead of parsing strings.
type WorkerError struct {
	Kind    ErrorKind
	Message string
	Stack   string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s error: %s", e.Kind, e.Message)
}

// InvalidUsage builds a worker error for malformed input to a handler.
func InvalidUsage(format string, args ...any) *WorkerError {
	return &WorkerError{Kind: KindInvalidUsage, Message: fmt.Sprintf(format, args...)}
}

// decodeWorkerError rebuilds the typed error from the tag fields carried in a
// reply. Unknown kinds degrade to generic rather than being dropped.
func decodeWorkerError(kind ErrorKind, message, stack string) error {
	switch kind {
	case KindRuntime, KindInvalidUsage, KindGeneric:
		return &WorkerError{Kind: kind, Message: message, Stack: stack}
	}
	return &WorkerError{Kind: KindGeneric, Message: message, Stack: stack}
}

// ConfigError is a fatal setup problem (for example a wasm bootstrap with no
// fallback on a runtime without wasm support). It is returned synchronously
// from the misconfigured call, never deferred through a future.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "task: configuration error: " + e.Reason
}
