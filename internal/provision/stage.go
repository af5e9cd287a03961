// SPDX-License-Identifier: MPL-2.0

package provision

import "fmt"

// Stage names a pipeline phase, letting callers map failures to the
// right remediation advice.
type Stage string

const (
	StageValidate Stage = "validate"
	StageDetect   Stage = "detect"
	StageBind     Stage = "bind"
	StageManifest Stage = "manifest"
	StageFetch    Stage = "fetch"
	StageScript   Stage = "script"
	StageLaunch   Stage = "launch"
)

// StageError tags a pipeline failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
