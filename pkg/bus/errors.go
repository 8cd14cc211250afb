package bus

import "strings"

// Error is a bus error with a stable code for programmatic matching.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	// ErrEmptyTopic is returned when an operation names an empty topic.
	ErrEmptyTopic = &Error{Code: "EMPTY_TOPIC", Message: "topic cannot be empty"}

	// ErrInvalidTopic is returned when a topic contains whitespace.
	ErrInvalidTopic = &Error{Code: "INVALID_TOPIC", Message: "topic cannot contain whitespace"}

	// ErrNilHandler is returned when Subscribe is given a nil callback.
	ErrNilHandler = &Error{Code: "NIL_HANDLER", Message: "handler cannot be nil"}
)

// ValidateTopic checks a topic name. Fail-fast: callers reject bad topics
// before touching any state.
func ValidateTopic(topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if strings.ContainsAny(topic, " \t\r\n") {
		return ErrInvalidTopic
	}
	return nil
}
