package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	return NewInstance(filepath.Join(t.TempDir(), "run", "serve.json"))
}

func TestAcquireAndRead(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.Acquire("localhost:8000"))

	info, err := inst.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, "localhost:8000", info.Addr)
	assert.WithinDuration(t, time.Now(), info.StartedAt, time.Minute)

	got, running := inst.Status()
	assert.True(t, running)
	assert.Equal(t, info.PID, got.PID)
}

func TestAcquire_AlreadyRunning(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.Acquire(":8000"))

	err := inst.Acquire(":9000")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquire_ReplacesStaleFile(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.write(Info{PID: 999999, Addr: ":1"}))

	_, running := inst.Status()
	require.False(t, running)

	require.NoError(t, inst.Acquire(":8000"))
	info, err := inst.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
}

func TestRelease(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.Release(), "missing file is fine")

	require.NoError(t, inst.Acquire(":8000"))
	require.NoError(t, inst.Release())
	_, err := os.Stat(inst.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestRelease_OtherOwner(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.write(Info{PID: 999999}))

	require.NoError(t, inst.Release())
	_, err := os.Stat(inst.Path)
	assert.NoError(t, err, "file owned by another pid is kept")
}

func TestRead_Invalid(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(inst.Path), 0o755))
	require.NoError(t, os.WriteFile(inst.Path, []byte("12345\n"), 0o644))

	_, err := inst.Read()
	assert.ErrorContains(t, err, "invalid instance file")

	_, running := inst.Status()
	assert.False(t, running)
}

func TestStop_NotRunning(t *testing.T) {
	inst := newTestInstance(t)
	_, err := inst.Stop(time.Second)
	assert.ErrorIs(t, err, ErrNotRunning)
}
