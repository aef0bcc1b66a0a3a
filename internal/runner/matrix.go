package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/desertwitch/primcheck/internal/harness"
	"github.com/desertwitch/primcheck/internal/primitives"
	"github.com/desertwitch/primcheck/internal/sandbox"
	"github.com/desertwitch/primcheck/internal/schema"
)

var (
	// FileNames are the leaf names of the file scenarios.
	FileNames = []string{"test_file1", "-asdads-", "123"}

	// DirectoryNames are the leaf names of the directory scenarios.
	DirectoryNames = []string{"test_dir", "another_test_dir", "666"}

	// FIFONames are the leaf names of the named pipe scenarios.
	FIFONames = []string{"test_fifo", "another_fifo", "111"}

	// FIFOPayloads are the payloads sent through every named pipe, also used
	// for the file content scenarios.
	FIFOPayloads = []string{"input", "1", "pewpew"}
)

const (
	// StreamPayload is the digit stream sent through a non-blocking pipe.
	StreamPayload = "0123456789"

	// LinkTarget is the leaf name of the target of the link scenarios.
	LinkTarget = "file"

	// LinkName is the leaf name of the link of the link scenarios.
	LinkName = "link"

	// LinkContent is the content of the target of the link scenarios.
	LinkContent = "content"

	// SocketContent is the payload sent over the loopback socket.
	SocketContent = "content"

	// CleanupLeaf is the leaf name of the cleanup scenario.
	CleanupLeaf = "test_file1"
)

// MatrixOptions are the options influencing the built scenario matrix.
type MatrixOptions struct {
	// Port is the loopback port of the socket round-trip, 0 for ephemeral.
	Port int

	// Mode is the producer mode; non-blocking pipes are only exercised in
	// [harness.ModeGoroutine].
	Mode harness.Mode
}

// Matrix returns the full scenario matrix over all literal inputs.
func Matrix(opts MatrixOptions) []Scenario {
	scenarios := []Scenario{}

	for _, name := range FileNames {
		scenarios = append(scenarios, Scenario{
			Name:   "file/" + name,
			Kind:   schema.KindFile,
			Inputs: []schema.Input{{Name: "name", Value: name}},
			Run:    fileScenario(name),
		})
	}

	for _, payload := range FIFOPayloads {
		scenarios = append(scenarios, Scenario{
			Name:   "file-content/" + payload,
			Kind:   schema.KindFile,
			Inputs: []schema.Input{{Name: "payload", Value: payload}},
			Run:    fileContentScenario(FileNames[0], schema.PayloadString(payload)),
		})
	}

	for _, name := range DirectoryNames {
		scenarios = append(scenarios, Scenario{
			Name:   "directory/" + name,
			Kind:   schema.KindDirectory,
			Inputs: []schema.Input{{Name: "name", Value: name}},
			Run:    directoryScenario(name),
		})
	}

	scenarios = append(scenarios, Scenario{
		Name:   "directory-not-empty/" + DirectoryNames[0],
		Kind:   schema.KindDirectory,
		Inputs: []schema.Input{{Name: "name", Value: DirectoryNames[0]}, {Name: "entry", Value: FileNames[0]}},
		Run:    directoryNotEmptyScenario(DirectoryNames[0], FileNames[0]),
	})

	modes := []harness.FIFOMode{harness.FIFOBlocking}
	if opts.Mode == harness.ModeGoroutine {
		modes = append(modes, harness.FIFONonBlocking)
	}

	for _, mode := range modes {
		for _, name := range FIFONames {
			for _, payload := range FIFOPayloads {
				scenarios = append(scenarios, Scenario{
					Name: fmt.Sprintf("fifo-%s/%s/%s", mode, name, payload),
					Kind: schema.KindFIFO,
					Inputs: []schema.Input{
						{Name: "name", Value: name},
						{Name: "payload", Value: payload},
						{Name: "mode", Value: mode.String()},
					},
					Run: fifoScenario(name, schema.PayloadString(payload), mode),
				})
			}
		}
	}

	if opts.Mode == harness.ModeGoroutine {
		scenarios = append(scenarios, Scenario{
			Name: "fifo-stream/" + FIFONames[0],
			Kind: schema.KindFIFO,
			Inputs: []schema.Input{
				{Name: "name", Value: FIFONames[0]},
				{Name: "payload", Value: StreamPayload},
				{Name: "mode", Value: harness.FIFONonBlocking.String()},
			},
			Run: fifoScenario(FIFONames[0], schema.PayloadString(StreamPayload), harness.FIFONonBlocking),
		})
	}

	linkInputs := []schema.Input{
		{Name: "target", Value: LinkTarget},
		{Name: "link", Value: LinkName},
		{Name: "content", Value: LinkContent},
	}

	scenarios = append(scenarios,
		Scenario{
			Name:   "hardlink/" + LinkName,
			Kind:   schema.KindHardlink,
			Inputs: linkInputs,
			Run:    hardlinkScenario,
		},
		Scenario{
			Name:   "symlink/" + LinkName,
			Kind:   schema.KindSymlink,
			Inputs: linkInputs,
			Run:    symlinkScenario,
		},
		Scenario{
			Name: "socket/round-trip",
			Kind: schema.KindSocket,
			Inputs: []schema.Input{
				{Name: "port", Value: strconv.Itoa(opts.Port)},
				{Name: "payload", Value: SocketContent},
			},
			Run: socketScenario(opts.Port, schema.PayloadString(SocketContent)),
		},
		Scenario{
			Name: "socket/address-in-use",
			Kind: schema.KindSocket,
			Run:  socketInUseScenario,
		},
		Scenario{
			Name: "socket/refused",
			Kind: schema.KindSocket,
			Run:  socketRefusedScenario,
		},
		Scenario{
			Name:   "cleanup/idempotence",
			Kind:   schema.KindFile,
			Inputs: []schema.Input{{Name: "name", Value: CleanupLeaf}},
			Run:    cleanupScenario(CleanupLeaf),
		},
	)

	return scenarios
}

// createVerified acquires a path-addressed primitive of the given kind through
// the scenario's [sandbox.Scope], creates it and verifies its existence.
func createVerified(env *Env, kind schema.Kind, name string) (sandbox.ScratchPath, *primitives.Primitive, error) {
	driver, err := env.Drivers.ForKind(kind)
	if err != nil {
		return sandbox.ScratchPath{}, nil, err
	}

	p, err := env.Scope.Acquire(kind, name)
	if err != nil {
		return sandbox.ScratchPath{}, nil, err
	}

	prim, err := driver.Create(p)
	if err != nil {
		return p, nil, err
	}

	if err := driver.Verify(prim); err != nil {
		return p, prim, err
	}

	return p, prim, nil
}

func fileScenario(name string) func(context.Context, *Env) error {
	return func(_ context.Context, env *Env) error {
		p, prim, err := createVerified(env, schema.KindFile, name)
		if err != nil {
			return fmt.Errorf("(scenario-file) %w", err)
		}

		if err := env.Scope.Release(p); err != nil {
			return fmt.Errorf("(scenario-file) %w", err)
		}

		if err := env.Drivers.File.VerifyAbsent(prim); err != nil {
			return fmt.Errorf("(scenario-file) %w", err)
		}

		return nil
	}
}

func fileContentScenario(name string, payload schema.Payload) func(context.Context, *Env) error {
	return func(_ context.Context, env *Env) error {
		p, err := env.Scope.Acquire(schema.KindFile, name)
		if err != nil {
			return fmt.Errorf("(scenario-content) %w", err)
		}

		prim, err := env.Drivers.File.CreateWithContent(p, payload)
		if err != nil {
			return fmt.Errorf("(scenario-content) %w", err)
		}

		if err := env.Drivers.File.Verify(prim); err != nil {
			return fmt.Errorf("(scenario-content) %w", err)
		}

		return nil
	}
}

func directoryScenario(name string) func(context.Context, *Env) error {
	return func(_ context.Context, env *Env) error {
		p, prim, err := createVerified(env, schema.KindDirectory, name)
		if err != nil {
			return fmt.Errorf("(scenario-dir) %w", err)
		}

		empty, err := env.Drivers.Directory.IsEmpty(prim)
		if err != nil {
			return fmt.Errorf("(scenario-dir) %w", err)
		}

		if !empty {
			return fmt.Errorf("(scenario-dir) %w", schema.Mismatch("emptiness of "+p.Path(), true, false))
		}

		if err := env.Drivers.Directory.Remove(prim); err != nil {
			return fmt.Errorf("(scenario-dir) %w", err)
		}

		if err := env.Drivers.Directory.Absent(p.Path()); err != nil {
			return fmt.Errorf("(scenario-dir) %w", err)
		}

		return nil
	}
}

// directoryNotEmptyScenario checks that a directory holding an entry cannot
// be removed, and that it can once the entry is gone.
func directoryNotEmptyScenario(name, entry string) func(context.Context, *Env) error {
	return func(_ context.Context, env *Env) error {
		dir, err := env.Scope.Sandbox().Isolate(name)
		if err != nil {
			return fmt.Errorf("(scenario-dir-nonempty) %w", err)
		}
		env.Defer(dir.Destroy)

		inner := dir.NewScope()
		env.Defer(inner.Close)

		prim := &primitives.Primitive{Path: dir.Self(), Kind: schema.KindDirectory}
		if err := env.Drivers.Directory.Verify(prim); err != nil {
			return fmt.Errorf("(scenario-dir-nonempty) %w", err)
		}

		p, err := inner.Acquire(schema.KindFile, entry)
		if err != nil {
			return fmt.Errorf("(scenario-dir-nonempty) %w", err)
		}

		if _, err := env.Drivers.File.Create(p); err != nil {
			return fmt.Errorf("(scenario-dir-nonempty) %w", schema.Setup(err))
		}

		err = env.Drivers.Directory.Remove(prim)
		if err == nil {
			return fmt.Errorf("(scenario-dir-nonempty) %w: rmdir of non-empty directory", ErrUnexpectedSuccess)
		}

		if !errors.Is(err, primitives.ErrNotEmpty) {
			return fmt.Errorf("(scenario-dir-nonempty) %w", err)
		}

		if err := inner.Release(p); err != nil {
			return fmt.Errorf("(scenario-dir-nonempty) %w", err)
		}

		if err := env.Drivers.Directory.Remove(prim); err != nil {
			return fmt.Errorf("(scenario-dir-nonempty) %w", err)
		}

		return nil
	}
}

func fifoScenario(name string, payload schema.Payload, mode harness.FIFOMode) func(context.Context, *Env) error {
	return func(ctx context.Context, env *Env) error {
		p, _, err := createVerified(env, schema.KindFIFO, name)
		if err != nil {
			return fmt.Errorf("(scenario-fifo) %w", err)
		}

		transport := harness.NewFIFOTransport(p.Path(), mode, env.OS)
		env.Defer(transport.Close)

		if err := env.Harness.RoundTrip(ctx, transport, payload); err != nil {
			return fmt.Errorf("(scenario-fifo) %w", err)
		}

		return nil
	}
}

func hardlinkScenario(_ context.Context, env *Env) error {
	target, link, err := acquireLinkPair(env, schema.KindHardlink)
	if err != nil {
		return fmt.Errorf("(scenario-hardlink) %w", err)
	}

	prim, err := env.Drivers.Hardlink.Create(target, link, schema.PayloadString(LinkContent))
	if err != nil {
		return fmt.Errorf("(scenario-hardlink) %w", err)
	}

	if err := env.Drivers.Hardlink.Verify(prim); err != nil {
		return fmt.Errorf("(scenario-hardlink) %w", err)
	}

	if err := env.Drivers.Hardlink.VerifyUnlink(prim); err != nil {
		return fmt.Errorf("(scenario-hardlink) %w", err)
	}

	return nil
}

func symlinkScenario(_ context.Context, env *Env) error {
	target, link, err := acquireLinkPair(env, schema.KindSymlink)
	if err != nil {
		return fmt.Errorf("(scenario-symlink) %w", err)
	}

	prim, err := env.Drivers.Symlink.Create(target, link, schema.PayloadString(LinkContent))
	if err != nil {
		return fmt.Errorf("(scenario-symlink) %w", err)
	}

	if err := env.Drivers.Symlink.Verify(prim); err != nil {
		return fmt.Errorf("(scenario-symlink) %w", err)
	}

	if err := env.Drivers.Symlink.VerifyUnlink(prim); err != nil {
		return fmt.Errorf("(scenario-symlink) %w", err)
	}

	return nil
}

func acquireLinkPair(env *Env, kind schema.Kind) (target, link sandbox.ScratchPath, err error) {
	target, err = env.Scope.Acquire(schema.KindFile, LinkTarget)
	if err != nil {
		return target, link, err
	}

	link, err = env.Scope.Acquire(kind, LinkName)

	return target, link, err
}

func socketScenario(port int, payload schema.Payload) func(context.Context, *Env) error {
	return func(ctx context.Context, env *Env) error {
		transport := harness.NewTCPTransport(primitives.LoopbackAddress(port), env.Drivers.Socket)
		env.Defer(transport.Close)

		if err := transport.Prepare(ctx); err != nil {
			return fmt.Errorf("(scenario-socket) %w", err)
		}

		if err := env.Drivers.Socket.Verify(transport.Primitive()); err != nil {
			return fmt.Errorf("(scenario-socket) %w", err)
		}

		if err := env.Harness.RoundTrip(ctx, transport, payload); err != nil {
			return fmt.Errorf("(scenario-socket) %w", err)
		}

		return nil
	}
}

// socketInUseScenario checks that binding an already bound address is
// reported as address-in-use, the condition a socket scenario is skipped on.
func socketInUseScenario(ctx context.Context, env *Env) error {
	first, err := env.Drivers.Socket.Listen(ctx, primitives.LoopbackAddress(0))
	if err != nil {
		return fmt.Errorf("(scenario-socket-inuse) %w", schema.Setup(err))
	}
	env.Defer(first.Close)

	second, err := env.Drivers.Socket.Listen(ctx, first.Addr.String())
	if err == nil {
		second.Close()

		return fmt.Errorf("(scenario-socket-inuse) %w: bind of %s", ErrUnexpectedSuccess, first.Addr)
	}

	if !errors.Is(err, schema.ErrAddressInUse) {
		return fmt.Errorf("(scenario-socket-inuse) %w", schema.Mismatch("bind error", schema.ErrAddressInUse, err))
	}

	slog.Debug("Address in use reported as expected", "address", first.Addr.String())

	return nil
}

// socketRefusedScenario checks that connecting to an address without a
// listener is reported as connection-refused.
func socketRefusedScenario(ctx context.Context, env *Env) error {
	endpoint, err := env.Drivers.Socket.Listen(ctx, primitives.LoopbackAddress(0))
	if err != nil {
		return fmt.Errorf("(scenario-socket-refused) %w", schema.Setup(err))
	}

	address := endpoint.Addr.String()
	if err := endpoint.Close(); err != nil {
		return fmt.Errorf("(scenario-socket-refused) %w", schema.Setup(err))
	}

	conn, err := env.Drivers.Socket.Dial(ctx, address)
	if err == nil {
		conn.Close()

		return fmt.Errorf("(scenario-socket-refused) %w: dial of %s", ErrUnexpectedSuccess, address)
	}

	if !errors.Is(err, schema.ErrConnectionRefused) {
		return fmt.Errorf("(scenario-socket-refused) %w", schema.Mismatch("dial error", schema.ErrConnectionRefused, err))
	}

	slog.Debug("Connection refused as expected", "address", address)

	return nil
}

func cleanupScenario(name string) func(context.Context, *Env) error {
	return func(_ context.Context, env *Env) error {
		p, err := env.Scope.Acquire(schema.KindFile, name)
		if err != nil {
			return fmt.Errorf("(scenario-cleanup) %w", err)
		}

		prim, err := env.Drivers.File.Create(p)
		if err != nil {
			return fmt.Errorf("(scenario-cleanup) %w", err)
		}

		for range 2 {
			if err := env.Scope.Release(p); err != nil {
				return fmt.Errorf("(scenario-cleanup) %w", err)
			}
		}

		if err := env.Scope.Sandbox().Release(p); err != nil {
			return fmt.Errorf("(scenario-cleanup) %w", err)
		}

		if err := env.Drivers.File.VerifyAbsent(prim); err != nil {
			return fmt.Errorf("(scenario-cleanup) %w", err)
		}

		return nil
	}
}
