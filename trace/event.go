package trace

import "github.com/tcassar-diss/scwin/label"

// SyscallEvent is one observed system call. SequenceIndex is the emission
// order within its process in the source trace and breaks timestamp ties.
type SyscallEvent struct {
	SequenceIndex int     `json:"sequence_index"`
	Timestamp     float64 `json:"timestamp"`
	Syscall       string  `json:"syscall"`
	PID           int32   `json:"pid"`
	RetVal        *int64  `json:"retval,omitempty"`
	ArgsDigest    string  `json:"args_digest,omitempty"`
}

// ProcessTrace is the full observed syscall sequence of one process in a
// recording run. It is never mutated after ingestion finalizes the run.
type ProcessTrace struct {
	PID           int32
	FunctionLabel string
	Class         label.Class
	Attack        label.AttackType
	Events        []SyscallEvent
}

func (p *ProcessTrace) Len() int {
	return len(p.Events)
}
