package factory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/variousplug/vp/config"
	"github.com/variousplug/vp/filesync"
	"github.com/variousplug/vp/platform"
	"github.com/variousplug/vp/util"
)

type fakeRunner struct{}

func (fakeRunner) Run(context.Context, time.Duration, string, ...string) (util.CommandResult, error) {
	return util.CommandResult{}, nil
}

func newTestFactory(t *testing.T) *Factory {
	f, err := New(Deps{Logger: zap.NewNop(), Runner: fakeRunner{}})
	require.NoError(t, err)
	return f
}

func TestSupportedPlatforms(t *testing.T) {
	f := newTestFactory(t)
	assert.Equal(t, []string{"runpod", "vast"}, f.SupportedPlatforms())
}

func TestCreateClient(t *testing.T) {
	f := newTestFactory(t)

	for _, name := range f.SupportedPlatforms() {
		client, err := f.CreateClient(name, config.PlatformConfig{APIKey: "key"})
		require.NoError(t, err, "platform %s", name)
		assert.NotNil(t, client)
	}
}

func TestCreateClientUnknownPlatform(t *testing.T) {
	f := newTestFactory(t)

	_, err := f.CreateClient("lambda", config.PlatformConfig{APIKey: "key"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPlatform))
}

func TestCreateClientMissingCredential(t *testing.T) {
	f := newTestFactory(t)

	_, err := f.CreateClient("vast", config.PlatformConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredential))
}

func TestCreateFileSync(t *testing.T) {
	f := newTestFactory(t)

	sync, err := f.CreateFileSync("vast", config.PlatformConfig{APIKey: "key"})
	require.NoError(t, err)
	rsync, ok := sync.(*filesync.Rsync)
	require.True(t, ok)
	assert.True(t, rsync.Delete, "vast uploads mirror deletions")

	sync, err = f.CreateFileSync("runpod", config.PlatformConfig{APIKey: "key"})
	require.NoError(t, err)
	rsync, ok = sync.(*filesync.Rsync)
	require.True(t, ok)
	assert.False(t, rsync.Delete)
}

func TestRegisterNewPlatform(t *testing.T) {
	f := newTestFactory(t)

	f.Register("custom",
		func(cfg config.PlatformConfig, deps Deps) (platform.Client, error) {
			return nil, errors.New("constructed")
		},
		nil)

	assert.Contains(t, f.SupportedPlatforms(), "custom")

	_, err := f.CreateClient("custom", config.PlatformConfig{APIKey: "key"})
	assert.EqualError(t, err, "constructed")

	// A nil sync constructor degrades to the no-op implementation.
	sync, err := f.CreateFileSync("custom", config.PlatformConfig{})
	require.NoError(t, err)
	_, ok := sync.(*filesync.Noop)
	assert.True(t, ok)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Deps{Runner: fakeRunner{}})
	assert.Error(t, err)
	_, err = New(Deps{Logger: zap.NewNop()})
	assert.Error(t, err)
}
