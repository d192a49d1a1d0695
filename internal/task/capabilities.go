package task

import (
	"context"

	"github.com/tetratelabs/wazero"
)

// wasmMagicModule is the smallest valid wasm binary (magic + version, no
// sections). Compiling it proves the embedded runtime works on this platform.
var wasmMagicModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Capabilities records what the runtime supports. It is detected once at
// startup and passed explicitly to processors, not probed lazily from inside
// the scheduling path.
type Capabilities struct {
	// TransferBuffers reports whether byte buffers may be handed to a worker
	// without copying. When false every transfer list is deep-copied instead.
	TransferBuffers bool
	// Wasm reports whether wasm modules can be compiled and instantiated.
	Wasm bool
}

// DetectCapabilities probes the process once. Buffer donation is always
// available in-process; wasm support is proven by compiling a trivial module.
func DetectCapabilities(ctx context.Context) Capabilities {
	return Capabilities{
		TransferBuffers: true,
		Wasm:            probeWasm(ctx),
	}
}

func probeWasm(ctx context.Context) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	if _, err := r.CompileModule(ctx, wasmMagicModule); err != nil {
		return false
	}
	return true
}
