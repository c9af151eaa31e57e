package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordTask struct {
	name     string
	log      *[]string
	startErr error
	ctx      context.Context
}

func (r *recordTask) Name() string { return r.name }

func (r *recordTask) Start(ctx context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.ctx = ctx
	*r.log = append(*r.log, "start "+r.name)
	return nil
}

func (r *recordTask) Stop() error {
	*r.log = append(*r.log, "stop "+r.name)
	return errors.New("already stopped")
}

func TestManagerStartsInOrderStopsInReverse(t *testing.T) {
	var log []string
	m := NewManager()
	a := &recordTask{name: "a", log: &log}
	m.Register(a)
	m.Register(&recordTask{name: "b", log: &log})
	m.Register(nil)

	require.NoError(t, m.StartAll(context.Background()))
	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()
	m.StopAll()

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
	assert.Error(t, a.ctx.Err())
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var log []string
	m := NewManager()
	m.Register(&recordTask{name: "a", log: &log})
	m.Register(&recordTask{name: "b", log: &log, startErr: errors.New("port in use")})
	m.Register(&recordTask{name: "c", log: &log})

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b")
	assert.Equal(t, []string{"start a", "stop a"}, log)
}
