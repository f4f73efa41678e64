package installer

import "fmt"

// Stage is a state of the installation state machine. Stages are reached in
// declaration order; StageFailed can follow any of them.
type Stage int

const (
	StageIdle Stage = iota
	StageFatChecked
	StagePayloadCopied
	StageBootSectorWritten
	StagePartitionMarked
	StageRootSectorPatched
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:              "idle",
	StageFatChecked:        "fat-checked",
	StagePayloadCopied:     "payload-copied",
	StageBootSectorWritten: "boot-sector-written",
	StagePartitionMarked:   "partition-marked",
	StageRootSectorPatched: "root-sector-patched",
	StageDone:              "done",
	StageFailed:            "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError reports the stage that could not be reached.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
