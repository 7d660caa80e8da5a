package hearing

import "errors"

// ErrBusy is returned by every mutating entry point while an activity is
// running.
var ErrBusy = errors.New("hearing: another activity is in progress")

// ValidationError reports missing user input. It is raised before any state
// change or gateway call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "hearing: validation: " + e.Reason
}
