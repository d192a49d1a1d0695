package task

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// WasmOptions configures a one-time wasm bootstrap for a processor.
// Exactly one of Binary or Path supplies the module; Fallback is the handler
// used instead when the runtime has no wasm support.
type WasmOptions struct {
	Binary   []byte
	Path     string
	Fallback Handler
}

// WasmModule is a compiled wasm module plus the wazero runtime that owns it.
// Handlers get it through Call.Wasm and instantiate per task as needed.
type WasmModule struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// Instantiate creates a fresh instance of the compiled module. Instances are
// anonymous so a worker may instantiate once per task.
func (m *WasmModule) Instantiate(ctx context.Context) (api.Module, error) {
	return m.runtime.InstantiateModule(ctx, m.compiled, wazero.NewModuleConfig().WithName(""))
}

// Close releases the runtime and everything compiled in it.
func (m *WasmModule) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

func (m *WasmModule) close() {
	_ = m.Close(context.Background())
}

// InitWasm bootstraps a wasm module for this processor's worker. The result is
// memoized: repeated calls return the same future regardless of options. Call
// it before the first Schedule so the worker waits for the bootstrap before
// its first task.
//
// When the detected capabilities lack wasm support the Fallback handler
// replaces the processor's handler and the returned future is already
// settled; with no fallback this is a fatal misconfiguration reported
// synchronously as *ConfigError.
func (p *Processor) InitWasm(ctx context.Context, opts WasmOptions) (*Future, error) {
	p.mu.Lock()
	if p.bootstrap != nil {
		fut := p.bootstrap
		p.mu.Unlock()
		return fut, nil
	}
	if !p.caps.Wasm {
		if opts.Fallback == nil {
			p.mu.Unlock()
			return nil, &ConfigError{Reason: "wasm unsupported and no fallback handler given"}
		}
		p.handler = opts.Fallback
		fut := newFuture()
		fut.settle(nil, nil)
		p.bootstrap = fut
		p.mu.Unlock()
		return fut, nil
	}
	if len(opts.Binary) == 0 && opts.Path == "" {
		p.mu.Unlock()
		return nil, &ConfigError{Reason: "wasm bootstrap needs Binary or Path"}
	}
	fut := newFuture()
	p.bootstrap = fut
	p.mu.Unlock()

	go func() {
		mod, err := compileWasm(ctx, opts.Binary, opts.Path)
		if err != nil {
			fut.settle(nil, err)
			return
		}
		p.mu.Lock()
		if p.destroyed {
			p.mu.Unlock()
			mod.close()
			fut.settle(nil, &ConfigError{Reason: "processor destroyed during wasm bootstrap"})
			return
		}
		p.wasm = mod
		p.mu.Unlock()
		fut.settle(mod, nil)
	}()
	return fut, nil
}

func compileWasm(ctx context.Context, binary []byte, path string) (*WasmModule, error) {
	if len(binary) == 0 {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read wasm module: %w", err)
		}
		binary = b
	}
	r := wazero.NewRuntime(ctx)
	compiled, err := r.CompileModule(ctx, binary)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}
	return &WasmModule{runtime: r, compiled: compiled}, nil
}
