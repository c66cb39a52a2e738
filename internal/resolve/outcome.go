package resolve

// OutcomeStatus distinguishes "resolved", "checked everywhere, no such
// work" and "could not complete resolution".
type OutcomeStatus int

const (
	OutcomeFound OutcomeStatus = iota
	OutcomeNotFound
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Outcome is what the chain and the cache guard exchange. Record is set
// only for OutcomeFound; Err only for OutcomeFailed.
type Outcome struct {
	Status OutcomeStatus
	Record *Record
	Err    error
}

// Found wraps a merged canonical record.
func Found(rec *Record) Outcome {
	return Outcome{Status: OutcomeFound, Record: rec}
}

// NoRecord reports that at least one source answered and none has the work.
func NoRecord() Outcome {
	return Outcome{Status: OutcomeNotFound}
}

// Failed reports that resolution could not complete.
func Failed(err error) Outcome {
	return Outcome{Status: OutcomeFailed, Err: err}
}
