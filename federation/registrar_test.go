package federation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-module-shell/federation"
	"github.com/jrsteele09/go-module-shell/registry"
	"github.com/stretchr/testify/require"
)

type countingRuntime struct {
	calls     atomic.Int32
	instances []federation.Instance
}

func (r *countingRuntime) Instances() []federation.Instance {
	r.calls.Add(1)
	return r.instances
}

type recordingInstance struct {
	name  string
	err   error
	panic bool

	mu    sync.Mutex
	calls [][]federation.Remote
	force []bool
}

func (i *recordingInstance) Name() string { return i.name }

func (i *recordingInstance) RegisterRemotes(remotes []federation.Remote, force bool) error {
	if i.panic {
		panic("runtime exploded")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, remotes)
	i.force = append(i.force, force)
	return i.err
}

func oneRemote() registry.RemoteRegistry {
	return registry.RemoteRegistry{Remotes: map[string]registry.RemoteEntry{
		"billing": {Name: "billing_app", Entry: "https://billing.example.com/remoteEntry.js"},
	}}
}

func fastRegistrar(rt federation.Runtime, opts ...federation.RegistrarOption) *federation.Registrar {
	base := []federation.RegistrarOption{
		federation.WithPollInterval(2 * time.Millisecond),
		federation.WithMaxWait(40 * time.Millisecond),
	}
	return federation.NewRegistrar(rt, "shell", append(base, opts...)...)
}

func TestRegistrar_NoCandidates(t *testing.T) {
	rt := &countingRuntime{}
	reg := registry.RemoteRegistry{Remotes: map[string]registry.RemoteEntry{
		"broken": {Name: "", Entry: "https://x.example.com/remoteEntry.js"},
	}}

	outcome := fastRegistrar(rt).RegisterRuntimeRemotes(context.Background(), reg)
	require.Equal(t, federation.OutcomeNoCandidates, outcome)
	require.Zero(t, rt.calls.Load(), "runtime must not be consulted without candidates")

	outcome = fastRegistrar(rt).RegisterRuntimeRemotes(context.Background(), registry.RemoteRegistry{})
	require.Equal(t, federation.OutcomeNoCandidates, outcome)
	require.Zero(t, rt.calls.Load())
}

func TestRegistrar_SkipsMalformedEntries(t *testing.T) {
	inst := &recordingInstance{name: "shell"}
	rt := &countingRuntime{instances: []federation.Instance{inst}}
	reg := registry.RemoteRegistry{Remotes: map[string]registry.RemoteEntry{
		"good": {Name: "good_app", Entry: "https://good.example.com/remoteEntry.js"},
		"bad":  {Name: "bad_app"},
	}}

	outcome := fastRegistrar(rt).RegisterRuntimeRemotes(context.Background(), reg)
	require.Equal(t, federation.OutcomeRegistered, outcome)
	require.Len(t, inst.calls, 1)
	require.Equal(t, []federation.Remote{{Name: "good_app", Entry: "https://good.example.com/remoteEntry.js"}}, inst.calls[0])
	require.Equal(t, []bool{true}, inst.force)
}

func TestRegistrar_RuntimeUnavailable(t *testing.T) {
	rt := &countingRuntime{}

	start := time.Now()
	outcome := fastRegistrar(rt).RegisterRuntimeRemotes(context.Background(), oneRemote())
	require.Equal(t, federation.OutcomeRuntimeUnavailable, outcome)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	require.Greater(t, rt.calls.Load(), int32(1), "runtime should be polled repeatedly")
}

func TestRegistrar_ZeroMaxWaitChecksOnce(t *testing.T) {
	rt := &countingRuntime{}
	r := federation.NewRegistrar(rt, "shell", federation.WithMaxWait(0))

	outcome := r.RegisterRuntimeRemotes(context.Background(), oneRemote())
	require.Equal(t, federation.OutcomeRuntimeUnavailable, outcome)
	require.LessOrEqual(t, rt.calls.Load(), int32(2))
}

func TestRegistrar_InstanceAttachedLate(t *testing.T) {
	host := federation.NewHost()
	container := federation.NewContainer("shell")
	r := federation.NewRegistrar(host, "shell",
		federation.WithPollInterval(2*time.Millisecond),
		federation.WithMaxWait(2*time.Second),
	)

	go func() {
		time.Sleep(15 * time.Millisecond)
		host.Attach(container)
	}()

	outcome := r.RegisterRuntimeRemotes(context.Background(), oneRemote())
	require.Equal(t, federation.OutcomeRegistered, outcome)

	remote, ok := container.Remote("billing_app")
	require.True(t, ok)
	require.Equal(t, "https://billing.example.com/remoteEntry.js", remote.Entry)
}

func TestRegistrar_PrefersShellNamedInstance(t *testing.T) {
	other := &recordingInstance{name: "other"}
	shell := &recordingInstance{name: "shell"}
	rt := &countingRuntime{instances: []federation.Instance{other, shell}}

	outcome := fastRegistrar(rt).RegisterRuntimeRemotes(context.Background(), oneRemote())
	require.Equal(t, federation.OutcomeRegistered, outcome)
	require.Empty(t, other.calls)
	require.Len(t, shell.calls, 1)

	t.Run("falls back to first instance", func(t *testing.T) {
		first := &recordingInstance{name: "first"}
		second := &recordingInstance{name: "second"}
		rt := &countingRuntime{instances: []federation.Instance{first, second}}

		outcome := fastRegistrar(rt).RegisterRuntimeRemotes(context.Background(), oneRemote())
		require.Equal(t, federation.OutcomeRegistered, outcome)
		require.Len(t, first.calls, 1)
		require.Empty(t, second.calls)
	})
}

func TestRegistrar_RegistrationFailures(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		inst := &recordingInstance{name: "shell", err: errors.New("rejected")}
		rt := &countingRuntime{instances: []federation.Instance{inst}}
		outcome := fastRegistrar(rt).RegisterRuntimeRemotes(context.Background(), oneRemote())
		require.Equal(t, federation.OutcomeRegistrationFailed, outcome)
	})

	t.Run("panic", func(t *testing.T) {
		inst := &recordingInstance{name: "shell", panic: true}
		rt := &countingRuntime{instances: []federation.Instance{inst}}
		require.NotPanics(t, func() {
			outcome := fastRegistrar(rt).RegisterRuntimeRemotes(context.Background(), oneRemote())
			require.Equal(t, federation.OutcomeRegistrationFailed, outcome)
		})
	})
}

func TestRegistrar_ContextCancelled(t *testing.T) {
	rt := &countingRuntime{}
	r := federation.NewRegistrar(rt, "shell", federation.WithMaxWait(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome := r.RegisterRuntimeRemotes(ctx, oneRemote())
	require.Equal(t, federation.OutcomeRuntimeUnavailable, outcome)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestContainer_ForceOverridesBuildTimeRemotes(t *testing.T) {
	c := federation.NewContainer("shell", federation.Remote{Name: "billing_app", Entry: "https://build.example.com/remoteEntry.js"})

	require.NoError(t, c.RegisterRemotes([]federation.Remote{{Name: "billing_app", Entry: "https://soft.example.com/remoteEntry.js"}}, false))
	r, _ := c.Remote("billing_app")
	require.Equal(t, "https://build.example.com/remoteEntry.js", r.Entry)

	require.NoError(t, c.RegisterRemotes([]federation.Remote{{Name: "billing_app", Entry: "https://runtime.example.com/remoteEntry.js"}}, true))
	r, _ = c.Remote("billing_app")
	require.Equal(t, "https://runtime.example.com/remoteEntry.js", r.Entry)

	require.Error(t, c.RegisterRemotes([]federation.Remote{{Name: "x"}}, true))
	require.Len(t, c.Remotes(), 1)
}
