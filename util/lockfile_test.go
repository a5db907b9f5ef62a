package util_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

func TestLockfileAcquireAndRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "install-state.lock")

	lock := util.NewLockfile(path)
	require.NoError(t, lock.TryAcquire())

	lock.Release()

	// Reacquirable after release.
	require.NoError(t, lock.TryAcquire())
	lock.Release()
}

func TestLockfileHeldByAnotherHandle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "install-state.lock")

	first := util.NewLockfile(path)
	require.NoError(t, first.TryAcquire())
	defer first.Release()

	second := util.NewLockfile(path)
	err := second.TryAcquire()
	require.Error(t, err)

	var lockedErr util.AlreadyLockedError
	require.ErrorAs(t, err, &lockedErr)
	assert.Equal(t, path, lockedErr.Path)
}

func TestLockfileReleaseWithoutAcquire(t *testing.T) {
	t.Parallel()

	lock := util.NewLockfile(filepath.Join(t.TempDir(), "never-taken.lock"))
	lock.Release()
}
