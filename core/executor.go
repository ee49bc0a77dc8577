package core

import "fmt"

// BlueprintFunc is a native Go implementation of one blueprint function:
// the opcode_dispatcher.go Register/Dispatch shape, repurposed from 24-bit
// VM opcodes to blueprint function idents. args/return are the codec
// Value tree the executor decoded from/will encode to the caller's
// payload, per SPEC_FULL.md §12's "one opaque encoded-payload args blob
// in, one encoded-payload return" calling convention.
type BlueprintFunc func(ctx *HostContext, args Value) (Value, error)

// blueprintKey identifies one dispatchable function by package, blueprint
// name, and function ident.
type blueprintKey struct {
	Package   NodeId
	Blueprint string
	Function  string
}

// BlueprintRegistry is the native-dispatch table: blueprints compiled to Go
// rather than WASM register their functions here (the overwhelming common
// case for system blueprints like Account/Worktop helpers; application
// blueprints normally go through the WASM path in host_abi.go).
type BlueprintRegistry struct {
	fns map[blueprintKey]BlueprintFunc
}

func NewBlueprintRegistry() *BlueprintRegistry {
	return &BlueprintRegistry{fns: make(map[blueprintKey]BlueprintFunc)}
}

// Register installs fn under (pkg, blueprint, function). Re-registering the
// same key overwrites the previous handler, the same replace-in-place
// policy the teacher's opcode table uses for re-priced opcodes.
func (r *BlueprintRegistry) Register(pkg NodeId, blueprint, function string, fn BlueprintFunc) {
	r.fns[blueprintKey{Package: pkg, Blueprint: blueprint, Function: function}] = fn
}

// Dispatch invokes the registered handler for (pkg, blueprint, function)
// against ctx and args, charging a fixed per-invoke cost before running it
// (cost is pre-charged, matching the teacher's gas-before-execution policy
// in opcode_dispatcher.go).
func (r *BlueprintRegistry) Dispatch(ctx *HostContext, pkg NodeId, blueprint, function string, args Value) (Value, error) {
	fn, ok := r.fns[blueprintKey{Package: pkg, Blueprint: blueprint, Function: function}]
	if !ok {
		return Value{}, ApplicationErr(fmt.Errorf("blueprint function not found: %s/%s/%s", pkg, blueprint, function))
	}
	ctx.FeeReserve.Consume(CostReasonInvoke, 0)
	if ctx.FeeReserve.OutOfCost() {
		return Value{}, KernelErr(ErrOutOfCost)
	}
	return fn(ctx, args)
}
