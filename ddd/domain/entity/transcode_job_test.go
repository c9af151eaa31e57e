package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-service/ddd/domain/vo"
)

func TestTranscodeJobHappyPath(t *testing.T) {
	j := NewTranscodeJob(vo.MediaKindImage, vo.ReviewScope("r1"))
	require.NoError(t, j.MarkInputWritten("/tmp/job-x/input.png"))
	require.NoError(t, j.TransitionTo(vo.JobStateEncoding))
	require.NoError(t, j.TransitionTo(vo.JobStateArtifactsUploaded))
	j.SetManifest(vo.TranscodeManifest{ImageKey: "private/reviews/r1/a.webp"})
	j.CleanedUp()

	assert.Equal(t, vo.ObjectKey("private/reviews/r1/a.webp"), j.Manifest().ImageKey)
	assert.Equal(t, []vo.JobState{
		vo.JobStateCreated, vo.JobStateInputWritten, vo.JobStateEncoding,
		vo.JobStateArtifactsUploaded, vo.JobStateCleanedUp,
	}, j.History())
	assert.Equal(t, "/tmp/job-x/input.png", j.InputPath())
}

func TestTranscodeJobRejectsSkippingStates(t *testing.T) {
	j := NewTranscodeJob(vo.MediaKindVideo, vo.ReviewScope("r1"))
	err := j.TransitionTo(vo.JobStateEncoding)
	require.Error(t, err)
	assert.Equal(t, vo.JobStateCreated, j.State())
}

func TestTranscodeJobFailureAlwaysEndsCleanedUp(t *testing.T) {
	j := NewTranscodeJob(vo.MediaKindVideo, vo.ReviewScope("r1"))
	require.NoError(t, j.MarkInputWritten("in"))
	require.NoError(t, j.TransitionTo(vo.JobStateEncoding))
	j.Fail(errors.New("exit code 1"))
	j.Fail(errors.New("second"))
	j.CleanedUp()

	assert.Equal(t, vo.JobStateCleanedUp, j.State())
	assert.Equal(t, "second", j.ErrorMessage())
	assert.Equal(t, []vo.JobState{
		vo.JobStateCreated, vo.JobStateInputWritten, vo.JobStateEncoding,
		vo.JobStateFailed, vo.JobStateCleanedUp,
	}, j.History())
}

func TestTranscodeJobCleanupFromEncodingGoesThroughFailed(t *testing.T) {
	j := NewTranscodeJob(vo.MediaKindImage, vo.ReviewScope("r1"))
	require.NoError(t, j.MarkInputWritten("in"))
	require.NoError(t, j.TransitionTo(vo.JobStateEncoding))
	j.CleanedUp()
	h := j.History()
	assert.Equal(t, vo.JobStateFailed, h[len(h)-2])
	assert.Equal(t, vo.JobStateCleanedUp, h[len(h)-1])
}
