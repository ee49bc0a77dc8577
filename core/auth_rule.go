package core

// ResourceRequirement names what an AccessRule's leaf predicates test a
// proof against: either simple possession of any amount of a resource, a
// minimum amount, or a minimum count of non-fungibles.
type ResourceRequirement struct {
	Resource NodeId
	MinAmount Amount // AmountOf
	MinCount  int    // CountOf
}

// RuleKind tags the variant of an AccessRule node, mirroring the role
// language of §4.F: AllowAll/DenyAll/Require/AmountOf/CountOf/AllOf/AnyOf.
type RuleKind byte

const (
	RuleAllowAll RuleKind = iota
	RuleDenyAll
	RuleRequire
	RuleAmountOf
	RuleCountOf
	RuleAllOf
	RuleAnyOf
)

// AccessRule is the role language's expression tree: a leaf predicate over
// proofs in the auth zone, or a boolean combinator over child rules.
type AccessRule struct {
	Kind     RuleKind
	Resource ResourceRequirement
	Children []AccessRule
}

func AllowAll() AccessRule { return AccessRule{Kind: RuleAllowAll} }
func DenyAll() AccessRule  { return AccessRule{Kind: RuleDenyAll} }

// Require is satisfied by any proof of the named resource, regardless of
// amount.
func Require(resource NodeId) AccessRule {
	return AccessRule{Kind: RuleRequire, Resource: ResourceRequirement{Resource: resource}}
}

// AmountOf is satisfied by a proof of at least min units of resource.
func AmountOf(resource NodeId, min Amount) AccessRule {
	return AccessRule{Kind: RuleAmountOf, Resource: ResourceRequirement{Resource: resource, MinAmount: min}}
}

// CountOf is satisfied by a non-fungible proof covering at least n ids.
func CountOf(resource NodeId, n int) AccessRule {
	return AccessRule{Kind: RuleCountOf, Resource: ResourceRequirement{Resource: resource, MinCount: n}}
}

func AllOf(children ...AccessRule) AccessRule {
	return AccessRule{Kind: RuleAllOf, Children: children}
}

func AnyOf(children ...AccessRule) AccessRule {
	return AccessRule{Kind: RuleAnyOf, Children: children}
}

// Evaluate checks rule against the proofs visible in an auth zone (the
// zone's own proofs plus, where the caller allows it, inherited proofs from
// enclosing non-barrier zones). It never has side effects on the proofs
// themselves (Proof.Check is a read-only assertion).
func (r AccessRule) Evaluate(proofs []*Proof) bool {
	switch r.Kind {
	case RuleAllowAll:
		return true
	case RuleDenyAll:
		return false
	case RuleRequire:
		for _, p := range proofs {
			if p.Check(r.Resource.Resource) == nil {
				return true
			}
		}
		return false
	case RuleAmountOf:
		for _, p := range proofs {
			if p.Check(r.Resource.Resource) == nil && p.Amount().Cmp(r.Resource.MinAmount) >= 0 {
				return true
			}
		}
		return false
	case RuleCountOf:
		for _, p := range proofs {
			if p.Check(r.Resource.Resource) == nil && len(p.ids) >= r.Resource.MinCount {
				return true
			}
		}
		return false
	case RuleAllOf:
		for _, c := range r.Children {
			if !c.Evaluate(proofs) {
				return false
			}
		}
		return true
	case RuleAnyOf:
		for _, c := range r.Children {
			if c.Evaluate(proofs) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
