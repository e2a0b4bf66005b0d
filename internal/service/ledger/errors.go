package ledger

// ValidationError reports a malformed ingest payload. The reason is short and
// machine-readable; handlers map it to a 400.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return e.Reason
}
