package client

import "fmt"

// MessageLimitError is returned when a conversation grows past the configured
// message limit before the model produces a terminal response. It carries the
// state of the loop at the moment the limit tripped so callers can decide
// whether to raise the limit, trim history, or surface the failure.
//
// Example:
//
//	var limitErr *client.MessageLimitError
//	if errors.As(err, &limitErr) {
//	    log.Printf("hit %d/%d messages after %d roundtrips", limitErr.Count, limitErr.Limit, limitErr.Roundtrip)
//	}
type MessageLimitError struct {
	Count     int // messages in the conversation when the limit tripped
	Limit     int // the configured message limit
	Roundtrip int // tool roundtrips completed at that point
}

func (e *MessageLimitError) Error() string {
	return fmt.Sprintf("parley: conversation has %d messages, exceeding the limit of %d (after %d tool roundtrips)",
		e.Count, e.Limit, e.Roundtrip)
}
