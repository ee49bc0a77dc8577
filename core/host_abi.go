package core

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wasmerio/wasmer-go/wasmer"
)

var executorLog = logrus.WithField("subsystem", "executor")

// HostContext is the per-invocation environment the host ABI functions of
// §6.2 operate against: the kernel (for node/substate primitives), the fee
// reserve (for metering), the auth module (for proof pushing/zone hooks),
// and the transaction's worktop.
type HostContext struct {
	Kernel     *Kernel
	FeeReserve *FeeReserve
	Auth       *AuthModule
	Worktop    *Worktop
	Registry   *BlueprintRegistry

	events     []EmittedEvent
	logs       []LogLine
	wasmMemory *wasmer.Memory
}

// EmittedEvent is one event raised via the emit_event host call.
type EmittedEvent struct {
	Actor   NodeId
	Name    string
	Payload []byte
}

// LogLine is one line raised via the log_message host call.
type LogLine struct {
	Level   string
	Message string
}

// NewObject allocates and creates a new owned node for a blueprint
// instance, the object-lifecycle host call new_object.
func (h *HostContext) NewObject(entity EntityType, fields map[ModuleId][]byte) (NodeId, error) {
	id, err := h.Kernel.AllocateNodeId(entity)
	if err != nil {
		return NodeId{}, err
	}
	if err := h.Kernel.CreateNode(id, h.Kernel.CurrentActor().Package); err != nil {
		return NodeId{}, err
	}
	for module, value := range fields {
		handle, err := h.Kernel.LockSubstate(id, module, SubstateKey("state"), LockMutable)
		if err != nil {
			return NodeId{}, err
		}
		if err := h.Kernel.WriteSubstate(handle, value); err != nil {
			return NodeId{}, err
		}
		if err := h.Kernel.DropLock(handle); err != nil {
			return NodeId{}, err
		}
	}
	h.FeeReserve.Consume(CostReasonStateWrite, 0)
	return id, nil
}

// PublishPackage is the publish_package instruction's host-side
// implementation: a package address is content-derived from its code via
// Keccak256, the way virtual_machine.go derives contract addresses, so that
// publishing identical code twice always yields the same package NodeId.
// The package node is globalized immediately; per spec.md §1, packages live
// forever once published.
func (h *HostContext) PublishPackage(code []byte) (NodeId, error) {
	hash := crypto.Keccak256(code)
	var id NodeId
	id[0] = byte(EntityPackage)
	copy(id[1:], hash)

	err := h.Kernel.CreateNode(id, id)
	switch {
	case err == nil:
		handle, lockErr := h.Kernel.LockSubstate(id, ModuleObject, SubstateKey("code"), LockMutable)
		if lockErr != nil {
			return NodeId{}, lockErr
		}
		if writeErr := h.Kernel.WriteSubstate(handle, code); writeErr != nil {
			return NodeId{}, writeErr
		}
		if closeErr := h.Kernel.DropLock(handle); closeErr != nil {
			return NodeId{}, closeErr
		}
		if globalizeErr := h.Kernel.Globalize(id); globalizeErr != nil {
			return NodeId{}, globalizeErr
		}
	case errors.Is(err, ErrNodeExists):
		// Publishing the same code twice is idempotent: the package
		// address is content-derived, so this is already published.
	default:
		return NodeId{}, err
	}

	executorLog.Debugf("published package %s (%d bytes)", id.Hex(), len(code))
	return id, nil
}

// GlobalizeObject promotes an owned node to a globally addressable one.
func (h *HostContext) GlobalizeObject(id NodeId) error {
	return h.Kernel.Globalize(id)
}

// OpenField locks a field substate for read or read-write access, the
// open_substate/lock_field host call. The returned handle must be closed
// with CloseField.
func (h *HostContext) OpenField(node NodeId, module ModuleId, mutable bool) (*SubstateLockHandle, error) {
	flags := LockRead
	if mutable {
		flags = LockMutable
	}
	h.FeeReserve.Consume(CostReasonStateRead, 0)
	return h.Kernel.LockSubstate(node, module, SubstateKey("state"), flags)
}

func (h *HostContext) ReadField(handle *SubstateLockHandle) ([]byte, error) {
	h.FeeReserve.Consume(CostReasonStateRead, 0)
	return h.Kernel.ReadSubstate(handle)
}

func (h *HostContext) WriteField(handle *SubstateLockHandle, value []byte) error {
	h.FeeReserve.Consume(CostReasonStateWrite, 0)
	return h.Kernel.WriteSubstate(handle, value)
}

func (h *HostContext) CloseField(handle *SubstateLockHandle) error {
	return h.Kernel.DropLock(handle)
}

// KVStoreGet/Set/Remove are the key-value-store host calls, backed by
// ModuleObject substates keyed on the caller-supplied entry key rather than
// the fixed "state" key OpenField uses.
func (h *HostContext) KVStoreGet(node NodeId, key []byte) ([]byte, bool, error) {
	h.FeeReserve.Consume(CostReasonStateRead, 0)
	return h.Kernel.nodes.ReadSubstate(node, ModuleObject, SubstateKey(key))
}

func (h *HostContext) KVStoreSet(node NodeId, key, value []byte) error {
	h.FeeReserve.Consume(CostReasonStateWrite, 0)
	return h.Kernel.nodes.WriteSubstate(node, ModuleObject, SubstateKey(key), value)
}

func (h *HostContext) KVStoreRemove(node NodeId, key []byte) error {
	h.FeeReserve.Consume(CostReasonStateWrite, 0)
	return h.Kernel.nodes.WriteSubstate(node, ModuleObject, SubstateKey(key), nil)
}

// GetCurrentActorPackage is the context host call get_current_actor's
// package-address projection.
func (h *HostContext) GetCurrentActorPackage() NodeId {
	return h.Kernel.CurrentActor().Package
}

// ConsumeCostUnits is the metering host call, letting a blueprint charge
// for work it knows the kernel cannot see (a cryptographic primitive, a
// long loop).
func (h *HostContext) ConsumeCostUnits(units uint64) error {
	h.FeeReserve.Consume(CostReasonRuntimeExecution, units)
	if h.FeeReserve.OutOfCost() {
		return KernelErr(ErrOutOfCost)
	}
	return nil
}

// EmitEvent is the events/logs host call emit_event.
func (h *HostContext) EmitEvent(name string, payload []byte) {
	h.FeeReserve.Consume(CostReasonEventEmission, 0)
	h.events = append(h.events, EmittedEvent{Actor: h.Kernel.CurrentActor().Package, Name: name, Payload: payload})
}

// Log is the events/logs host call log_message.
func (h *HostContext) Log(level, message string) {
	h.logs = append(h.logs, LogLine{Level: level, Message: message})
	executorLog.Debugf("blueprint log [%s]: %s", level, message)
}

func (h *HostContext) Events() []EmittedEvent { return h.events }
func (h *HostContext) Logs() []LogLine        { return h.logs }

// GenerateUUID is the generate_uuid host call (§6.2), backed by
// github.com/google/uuid for RFC-4122 generation.
func (h *HostContext) GenerateUUID() [16]byte {
	id := uuid.New()
	var out [16]byte
	copy(out[:], id[:])
	return out
}

// --- WASM sandbox wiring -------------------------------------------------

// WasmExecutor runs application blueprints compiled to WebAssembly, the
// external collaborator of §1, via wasmer-go.
type WasmExecutor struct {
	engine *wasmer.Engine
}

func NewWasmExecutor() *WasmExecutor {
	return &WasmExecutor{engine: wasmer.NewEngine()}
}

// Run instantiates code and calls its exported export function, with the
// host ABI of §6.2 available as Wasm imports via registerHostImports.
func (w *WasmExecutor) Run(code []byte, export string, hctx *HostContext) error {
	store := wasmer.NewStore(w.engine)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return ApplicationErr(ErrInvalidWasm)
	}

	imports := registerHostImports(store, hctx)
	instance, err := wasmer.NewInstance(mod, imports)
	if err != nil {
		return ApplicationErr(fmt.Errorf("instantiate wasm module: %w", err))
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return ApplicationErr(ErrMissingExport)
	}
	hctx.wasmMemory = mem

	fn, err := instance.Exports.GetFunction(export)
	if err != nil {
		return ApplicationErr(ErrMissingExport)
	}
	if _, err := fn(); err != nil {
		return ApplicationErr(err)
	}
	return nil
}

// registerHostImports converts HostContext's methods into Wasm imports,
// following virtual_machine.go's registerHost shape: one wasmer.NewFunction
// per host call. consume_cost_units and emit_event charge cost units through
// the HostContext methods they call; log_message and generate_uuid charge
// nothing.
func registerHostImports(store *wasmer.Store, h *HostContext) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	consumeCostUnits := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I64),
			wasmer.NewValueTypes(wasmer.I32),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			units := uint64(args[0].I64())
			if err := h.ConsumeCostUnits(units); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	emitEvent := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32),
			wasmer.NewValueTypes(wasmer.I32),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			nameOff, nameLen := args[0].I32(), args[1].I32()
			payloadOff, payloadLen := args[2].I32(), args[3].I32()
			mem := h.wasmMemory.Data()
			name := string(mem[nameOff : nameOff+nameLen])
			payload := append([]byte(nil), mem[payloadOff:payloadOff+payloadLen]...)
			h.EmitEvent(name, payload)
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	logMessage := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32),
			wasmer.NewValueTypes(wasmer.I32),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			levelOff, levelLen := args[0].I32(), args[1].I32()
			msgOff, msgLen := args[2].I32(), args[3].I32()
			mem := h.wasmMemory.Data()
			level := string(mem[levelOff : levelOff+levelLen])
			msg := string(mem[msgOff : msgOff+msgLen])
			h.Log(level, msg)
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	generateUUID := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32),
			wasmer.NewValueTypes(wasmer.I32),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			out := args[0].I32()
			id := h.GenerateUUID()
			mem := h.wasmMemory.Data()
			copy(mem[out:out+16], id[:])
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	imports.Register("env", map[string]wasmer.IntoExtern{
		"consume_cost_units": consumeCostUnits,
		"emit_event":         emitEvent,
		"log_message":        logMessage,
		"generate_uuid":      generateUUID,
	})
	return imports
}
