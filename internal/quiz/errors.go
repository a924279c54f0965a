package quiz

import "errors"

var (
	ErrNoQuestionsAvailable = errors.New("no questions available")
	ErrNoActiveSession      = errors.New("no active quiz")
	ErrStaleQuestion        = errors.New("invalid question id")
)
