package retry

// BatchCall invokes a cloud batch operation against exactly the ids given.
// It returns nil if every id in the batch succeeded, or a non-nil error if
// any one (or more) failed — batch-level cloud APIs often can't say which.
type BatchCall func(ids []string) error

// Bisect implements the bisect-retry pattern: on a batch failure, split
// the batch in half and retry each half independently, recursing until
// single-element batches isolate exactly
// the poisoned ids. Given n ids with k poisoned among them, this issues at
// most ⌈log2(n)⌉·k + 1 sub-calls, and every good id still succeeds.
//
// The returned map contains an entry only for ids whose batch ultimately
// failed (single-element batch where call returned an error) — an empty
// (never nil) map means every id in the whole call succeeded.
func Bisect(ids []string, call BatchCall) map[string]error {
	failures := make(map[string]error)
	bisect(ids, call, failures)
	return failures
}

func bisect(ids []string, call BatchCall, failures map[string]error) {
	if len(ids) == 0 {
		return
	}
	err := call(ids)
	if err == nil {
		return
	}
	if len(ids) == 1 {
		failures[ids[0]] = err
		return
	}
	mid := len(ids) / 2
	bisect(ids[:mid], call, failures)
	bisect(ids[mid:], call, failures)
}
