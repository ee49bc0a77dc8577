package core

import "fmt"

// LocalTypeIndex names a type within a Schema, the way a compiled blueprint
// refers to its own field/argument types by a small integer rather than a
// repeated structural description.
type LocalTypeIndex uint32

// TypeKind describes what a schema slot expects an encoded value to be.
// KindAny matches any ValueKind; every other TypeKind must match the
// encoded value's ValueKind exactly except where a container TypeKind
// additionally constrains its element/key/value types.
type TypeKind struct {
	Kind ValueKind

	// For Array/Map slots, the element/key/value types are themselves
	// schema-described so nested containers are checked recursively.
	ElementType LocalTypeIndex
	KeyType     LocalTypeIndex
	ValueType   LocalTypeIndex

	// For Tuple/Enum slots: the expected field types. Enum additionally
	// indexes by variant since different variants carry different fields.
	TupleFields []LocalTypeIndex
	EnumFields  map[byte][]LocalTypeIndex
}

// Schema is the set of named type slots a typed traversal checks a payload
// against, per spec.md §4.A's "schema-typed traversal" requirement.
type Schema struct {
	Types []TypeKind
}

func (s Schema) resolve(idx LocalTypeIndex) (TypeKind, error) {
	if int(idx) >= len(s.Types) {
		return TypeKind{}, fmt.Errorf("schema: type index %d out of range", idx)
	}
	return s.Types[idx], nil
}

// valueKindMatchesTypeKind is value_kind_matches_type_kind: KindAny accepts
// any encoded kind; otherwise the kinds must be identical.
func valueKindMatchesTypeKind(vk ValueKind, tk ValueKind) bool {
	return tk == KindAny || vk == tk
}

// TypedEvent augments a raw traversal Event with the schema TypeKind it was
// checked against, or a non-nil Mismatch describing the first disagreement.
type TypedEvent struct {
	Event
	ExpectedType TypeKind
	Mismatch     error
}

// TypedVisitor receives TypedTraverse callbacks.
type TypedVisitor func(TypedEvent) error

// TypedTraverse walks data the same way Traverse does, additionally
// checking every ValueKind encountered against the Schema slot named by
// rootType, recursing into container element/key/value/field types. The
// walk stops at the first mismatch, reporting it via TypedEvent.Mismatch
// before returning the wrapped ErrTypeMismatch.
func TypedTraverse(data []byte, prefix PayloadPrefix, schema Schema, rootType LocalTypeIndex, visit TypedVisitor) error {
	root, err := schema.resolve(rootType)
	if err != nil {
		return err
	}
	if len(data) == 0 || PayloadPrefix(data[0]) != prefix {
		return ErrBadPrefix
	}
	tt := &typedTraverser{
		decoder: decoder{buf: data, pos: 1},
		schema:  schema,
		visit:   visit,
	}
	if err := tt.walkValue(root); err != nil {
		return err
	}
	if tt.pos != len(tt.buf) {
		return ErrTrailingBytes
	}
	return visit(TypedEvent{Event: Event{Kind: EventEnd, Offset: tt.pos}})
}

type typedTraverser struct {
	decoder
	schema Schema
	visit  TypedVisitor
}

func (tt *typedTraverser) mismatch(offset int, format string, args ...interface{}) error {
	err := walkBodyErrorf(offset, format, args...)
	_ = tt.visit(TypedEvent{
		Event:    Event{Kind: EventTerminalValue, Offset: offset},
		Mismatch: err,
	})
	return err
}

func (tt *typedTraverser) walkValue(expected TypeKind) error {
	offset := tt.pos
	kb, err := tt.readByte()
	if err != nil {
		return err
	}
	return tt.walkBody(ValueKind(kb), expected, offset)
}

func (tt *typedTraverser) walkBody(k ValueKind, expected TypeKind, offset int) error {
	if !valueKindMatchesTypeKind(k, expected.Kind) {
		return tt.mismatch(offset, "got %s, schema expects %s", k, expected.Kind)
	}
	tt.depth++
	defer func() { tt.depth-- }()
	if tt.depth > MaxNestingDepth {
		return ErrMaxDepthExceeded
	}

	switch k {
	case KindArray:
		ekb, err := tt.readByte()
		if err != nil {
			return err
		}
		n, err := tt.readU32()
		if err != nil {
			return err
		}
		ek := ValueKind(ekb)
		elemType, err := tt.schema.resolve(expected.ElementType)
		if err != nil {
			return err
		}
		if expected.Kind != KindAny && !valueKindMatchesTypeKind(ek, elemType.Kind) {
			return tt.mismatch(offset, "array element kind %s does not match schema %s", ek, elemType.Kind)
		}
		if err := tt.visit(TypedEvent{Event: Event{Kind: EventContainerStart, ContainerKind: k, ElementKind: ek, Length: n, Offset: offset, Depth: tt.depth}, ExpectedType: expected}); err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := tt.walkBody(ek, elemType, tt.pos); err != nil {
				return err
			}
		}
		return tt.visit(TypedEvent{Event: Event{Kind: EventContainerEnd, ContainerKind: k, Offset: tt.pos, Depth: tt.depth}, ExpectedType: expected})

	case KindTuple:
		n, err := tt.readU32()
		if err != nil {
			return err
		}
		if expected.Kind != KindAny && int(n) != len(expected.TupleFields) {
			return tt.mismatch(offset, "tuple has %d fields, schema expects %d", n, len(expected.TupleFields))
		}
		if err := tt.visit(TypedEvent{Event: Event{Kind: EventContainerStart, ContainerKind: k, Length: n, Offset: offset, Depth: tt.depth}, ExpectedType: expected}); err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			fieldType := expected
			if expected.Kind != KindAny {
				if fieldType, err = tt.schema.resolve(expected.TupleFields[i]); err != nil {
					return err
				}
			}
			if err := tt.walkValue(fieldType); err != nil {
				return err
			}
		}
		return tt.visit(TypedEvent{Event: Event{Kind: EventContainerEnd, ContainerKind: k, Offset: tt.pos, Depth: tt.depth}, ExpectedType: expected})

	case KindEnum:
		variant, err := tt.readByte()
		if err != nil {
			return err
		}
		n, err := tt.readU32()
		if err != nil {
			return err
		}
		fieldTypes, ok := expected.EnumFields[variant]
		if expected.Kind != KindAny {
			if !ok {
				return tt.mismatch(offset, "enum variant %d not present in schema", variant)
			}
			if int(n) != len(fieldTypes) {
				return tt.mismatch(offset, "enum variant %d has %d fields, schema expects %d", variant, n, len(fieldTypes))
			}
		}
		if err := tt.visit(TypedEvent{Event: Event{Kind: EventContainerStart, ContainerKind: k, EnumVariant: variant, Length: n, Offset: offset, Depth: tt.depth}, ExpectedType: expected}); err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			fieldType := expected
			if expected.Kind != KindAny {
				if fieldType, err = tt.schema.resolve(fieldTypes[i]); err != nil {
					return err
				}
			}
			if err := tt.walkValue(fieldType); err != nil {
				return err
			}
		}
		return tt.visit(TypedEvent{Event: Event{Kind: EventContainerEnd, ContainerKind: k, Offset: tt.pos, Depth: tt.depth}, ExpectedType: expected})

	case KindMap:
		kkb, err := tt.readByte()
		if err != nil {
			return err
		}
		vkb, err := tt.readByte()
		if err != nil {
			return err
		}
		n, err := tt.readU32()
		if err != nil {
			return err
		}
		kk, vk := ValueKind(kkb), ValueKind(vkb)
		keyType, err := tt.schema.resolve(expected.KeyType)
		if err != nil {
			return err
		}
		valType, err := tt.schema.resolve(expected.ValueType)
		if err != nil {
			return err
		}
		if expected.Kind != KindAny {
			if !valueKindMatchesTypeKind(kk, keyType.Kind) {
				return tt.mismatch(offset, "map key kind %s does not match schema %s", kk, keyType.Kind)
			}
			if !valueKindMatchesTypeKind(vk, valType.Kind) {
				return tt.mismatch(offset, "map value kind %s does not match schema %s", vk, valType.Kind)
			}
		}
		if err := tt.visit(TypedEvent{Event: Event{Kind: EventContainerStart, ContainerKind: k, KeyKind: kk, ValKind: vk, Length: n, Offset: offset, Depth: tt.depth}, ExpectedType: expected}); err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := tt.walkBody(kk, keyType, tt.pos); err != nil {
				return err
			}
			if err := tt.walkBody(vk, valType, tt.pos); err != nil {
				return err
			}
		}
		return tt.visit(TypedEvent{Event: Event{Kind: EventContainerEnd, ContainerKind: k, Offset: tt.pos, Depth: tt.depth}, ExpectedType: expected})

	default:
		v, err := tt.decodeBody(k)
		if err != nil {
			return err
		}
		return tt.visit(TypedEvent{Event: Event{Kind: EventTerminalValue, Value: v, Offset: offset, Depth: tt.depth}, ExpectedType: expected})
	}
}
