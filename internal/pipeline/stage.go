package pipeline

import "fmt"

// Stage names the per-file step that was running when a file failed.
type Stage string

const (
	StageParse     Stage = "parse"
	StageValidate  Stage = "validate"
	StageTransform Stage = "transform"
	StageSettle    Stage = "settle"
	StageRecord    Stage = "record"
)

// FileError is a per-file failure. The batch continues past it.
type FileError struct {
	Path  string
	Stage Stage
	Err   error
	// ArchivedPath is set when the file had already been moved.
	ArchivedPath string
}

func (e *FileError) Error() string {
	return fmt.Sprintf("pipeline: %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
