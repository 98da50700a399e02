package drone

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError_ContextErrorsDoNotRetry(t *testing.T) {
	assert.Equal(t, NoRetry, ClassifyError(context.Canceled))
	assert.Equal(t, NoRetry, ClassifyError(context.DeadlineExceeded))
}

func TestClassifyError_ConnectionErrorsRetryNewSession(t *testing.T) {
	assert.Equal(t, RetryNewSession, ClassifyError(errors.New("connection refused")))
	assert.Equal(t, RetryNewSession, ClassifyError(errors.New("broken pipe")))
}

func TestClassifyError_UnknownErrorsDoNotRetry(t *testing.T) {
	assert.Equal(t, NoRetry, ClassifyError(errors.New("something unexpected")))
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Equal(t, NoRetry, ClassifyError(nil))
}

func TestToolTimeout_MissionGetsLongCeiling(t *testing.T) {
	c := NewClient("drone-tool", nil, 0, nil)
	assert.Equal(t, DefaultMissionTimeout, c.toolTimeout(MissionToolName))
	assert.Equal(t, DefaultToolTimeout, c.toolTimeout("drone.take_off"))
}
