package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_NamesFailures(t *testing.T) {
	err := &ValidationError{PageID: "welcome", Failures: []Failure{
		{ID: "name", Kind: FailureElement, Reason: ReasonEmpty},
		{ID: "scan", Kind: FailureTask, Reason: ReasonPending},
	}}

	assert.Equal(t, "page welcome cannot advance: element name: empty, task scan: pending", err.Error())
	assert.True(t, err.Has("scan"))
	assert.False(t, err.Has("other"))
}

func TestTaskFailure_Unwraps(t *testing.T) {
	err := fmt.Errorf("runner: %w", &TaskFailure{TaskID: "fetch", Reason: "timeout", Err: context.DeadlineExceeded})

	var tf *TaskFailure
	assert.True(t, errors.As(err, &tf))
	assert.Equal(t, "fetch", tf.TaskID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "task fetch failed: cancelled", (&TaskFailure{TaskID: "fetch", Reason: "cancelled"}).Error())
}
