package boundary

// Status says how an invocation ended. There is no failure status: a handler
// failure is absorbed and surfaces as StatusRecovered.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusRecovered Status = "recovered"
)

// Outcome is the result of guarding one handler invocation. Reply carries the
// handler's reply on success and the generic fallback notice on recovery;
// Failure is set only when Status is StatusRecovered.
type Outcome struct {
	Status  Status
	Reply   string
	Failure *Failure
}

// Succeeded reports whether the handler completed normally.
func (o Outcome) Succeeded() bool { return o.Status == StatusSucceeded }

// Failure describes an absorbed handler failure. Cause is the internal
// description; it is logged but never shown to the user.
type Failure struct {
	Class       Class
	Cause       string
	Recoverable bool
}
