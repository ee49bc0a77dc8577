package core

// AuthModule wires the AuthZoneStack into the kernel's frame lifecycle,
// performing the package self-authentication carve-out and rule
// verification the way original_source's auth_module.rs does (resolved in
// SPEC_FULL.md §12).
type AuthModule struct {
	zones *AuthZoneStack
	rules *AccessRulesRegistry
}

func NewAuthModule() *AuthModule {
	return &AuthModule{zones: NewAuthZoneStack(), rules: NewAccessRulesRegistry()}
}

// SetRule installs the access rule governing a method key, consulted by
// AuthorizeCall before every dispatch to that key.
func (m *AuthModule) SetRule(key MethodKey, rule AccessRule) {
	m.rules.SetRule(key, rule)
}

// SetRole and BindMethodToRole expose the registry's role-group
// indirection directly off the module, so callers never need to reach
// into its rules registry.
func (m *AuthModule) SetRole(pkg NodeId, blueprint, role string, rule AccessRule) {
	m.rules.SetRole(pkg, blueprint, role, rule)
}

func (m *AuthModule) BindMethodToRole(key MethodKey, role string) {
	m.rules.BindMethodToRole(key, role)
}

// OnExecutionStart is called when the kernel pushes a new call frame for
// actor. It pushes a matching AuthZone and always injects a virtual proof
// of the callee's own package address, so a package's blueprints can
// always call back into themselves regardless of what the caller proved
// (the package self-authentication rule).
func (m *AuthModule) OnExecutionStart(actor Actor) *AuthZone {
	zone := m.zones.Push(actor.IsBarrier())
	packageProof := NewFungibleProof(NodeId{}, actor.Package, NewAmountFromInt64(1), ProofSource{})
	zone.PushVirtualProof(packageProof)
	return zone
}

// OnExecutionFinish pops the zone pushed for the frame that just returned.
func (m *AuthModule) OnExecutionFinish() *AuthZone {
	return m.zones.Pop()
}

// Authorize checks rule against every proof currently visible (this frame's
// zone plus non-barrier ancestors), the auth soundness property of §8: a
// rule is satisfied if and only if its Evaluate predicate holds over
// exactly that visible set.
func (m *AuthModule) Authorize(rule AccessRule) error {
	if rule.Evaluate(m.zones.VisibleProofs()) {
		return nil
	}
	return ModuleErr(ErrUnauthorized)
}

// AuthorizeCall resolves key's governing rule from the method-key rule
// table and checks it against the proofs currently visible to the calling
// frame, the before_push_frame hook of §4.F: called before a new call
// frame (and auth zone) is pushed for the callee, so the check runs
// against the caller's proofs, not the callee's.
func (m *AuthModule) AuthorizeCall(key MethodKey) error {
	return m.Authorize(m.rules.Resolve(key))
}

// PushProof adds a real (non-virtual) proof to the current zone, e.g. one
// produced by create_proof_from_bucket.
func (m *AuthModule) PushProof(p *Proof) {
	if z := m.zones.Current(); z != nil {
		z.PushProof(p)
	}
}
