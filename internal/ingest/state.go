package ingest

import "fmt"

// State is a step of the page state machine
type State int

const (
	StateIdle State = iota
	StateFetchingPage
	StateExtracting
	StateValidating
	StatePersistingBatch
	StateDone
	StateAborted
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateFetchingPage:    "fetching_page",
	StateExtracting:      "extracting",
	StateValidating:      "validating",
	StatePersistingBatch: "persisting_batch",
	StateDone:            "done",
	StateAborted:         "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in JSON reports
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// StopReason says why the page loop ended
type StopReason string

const (
	StopNotFound        StopReason = "not_found"
	StopEmptyPage       StopReason = "empty_page"
	StopPageLimit       StopReason = "page_limit"
	StopFetchFailed     StopReason = "fetch_failed"
	StopStorageFailed   StopReason = "storage_failed"
	StopCanceled        StopReason = "canceled"
	StopLockUnavailable StopReason = "lock_unavailable"
)
