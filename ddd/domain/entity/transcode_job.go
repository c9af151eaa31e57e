package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"media-service/ddd/domain/vo"
)

// TranscodeJob 单次转码作业，跟踪工作目录生命周期内的状态流转
type TranscodeJob struct {
	jobUUID      string
	kind         vo.MediaKind
	scope        vo.Scope
	inputPath    string
	workDir      string
	state        vo.JobState
	history      []vo.JobState
	manifest     vo.TranscodeManifest
	errorMessage string
	createdAt    time.Time
	updatedAt    time.Time
}

func NewTranscodeJob(kind vo.MediaKind, scope vo.Scope) *TranscodeJob {
	now := time.Now()
	return &TranscodeJob{
		jobUUID:   uuid.NewString(),
		kind:      kind,
		scope:     scope,
		state:     vo.JobStateCreated,
		history:   []vo.JobState{vo.JobStateCreated},
		createdAt: now,
		updatedAt: now,
	}
}

func (j *TranscodeJob) JobUUID() string                { return j.jobUUID }
func (j *TranscodeJob) Kind() vo.MediaKind             { return j.kind }
func (j *TranscodeJob) Scope() vo.Scope                { return j.scope }
func (j *TranscodeJob) InputPath() string              { return j.inputPath }
func (j *TranscodeJob) WorkDir() string                { return j.workDir }
func (j *TranscodeJob) State() vo.JobState             { return j.state }
func (j *TranscodeJob) Manifest() vo.TranscodeManifest { return j.manifest }
func (j *TranscodeJob) ErrorMessage() string           { return j.errorMessage }
func (j *TranscodeJob) CreatedAt() time.Time           { return j.createdAt }
func (j *TranscodeJob) UpdatedAt() time.Time           { return j.updatedAt }

func (j *TranscodeJob) SetWorkDir(dir string) {
	j.workDir = dir
	j.updatedAt = time.Now()
}

func (j *TranscodeJob) SetManifest(m vo.TranscodeManifest) {
	j.manifest = m
	j.updatedAt = time.Now()
}

// History returns every state the job has been in, oldest first.
func (j *TranscodeJob) History() []vo.JobState {
	out := make([]vo.JobState, len(j.history))
	copy(out, j.history)
	return out
}

// TransitionTo moves the job to target or returns an error if the move is illegal.
func (j *TranscodeJob) TransitionTo(target vo.JobState) error {
	if !j.state.CanTransitionTo(target) {
		return fmt.Errorf("job %s: illegal state transition %s -> %s", j.jobUUID, j.state, target)
	}
	j.state = target
	j.history = append(j.history, target)
	j.updatedAt = time.Now()
	return nil
}

// MarkInputWritten records where the input bytes were written.
func (j *TranscodeJob) MarkInputWritten(path string) error {
	if err := j.TransitionTo(vo.JobStateInputWritten); err != nil {
		return err
	}
	j.inputPath = path
	return nil
}

// Fail records err and moves to FAILED. A job already failed or cleaned up is left alone.
func (j *TranscodeJob) Fail(err error) {
	if err != nil {
		j.errorMessage = err.Error()
	}
	if j.state == vo.JobStateFailed || j.state == vo.JobStateCleanedUp {
		return
	}
	_ = j.TransitionTo(vo.JobStateFailed)
}

// CleanedUp is the terminal step on every path.
func (j *TranscodeJob) CleanedUp() {
	if j.state == vo.JobStateCleanedUp {
		return
	}
	if !j.state.CanTransitionTo(vo.JobStateCleanedUp) {
		j.Fail(nil)
	}
	_ = j.TransitionTo(vo.JobStateCleanedUp)
}
