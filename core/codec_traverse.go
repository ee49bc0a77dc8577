package core

import "fmt"

// EventKind tags the callbacks a Traverse walk delivers, mirroring the
// typed_traverser's raw event stream: container boundaries and terminal
// (leaf) values are reported separately so a caller can validate structure
// without materializing a full Value tree.
type EventKind int

const (
	EventContainerStart EventKind = iota
	EventContainerEnd
	EventTerminalValue
	EventEnd
)

// Event is one step of a Traverse walk. Offset is the byte position in the
// source payload where this event's tag began, used to report schema
// mismatches with an exact location.
type Event struct {
	Kind EventKind

	// Populated for EventContainerStart / EventContainerEnd.
	ContainerKind ValueKind
	// ElementKind/KeyKind/ValKind further describe the container per its
	// kind (Array -> ElementKind, Map -> KeyKind/ValKind, Tuple/Enum -> none
	// ahead of time since fields are self-describing).
	ElementKind ValueKind
	KeyKind     ValueKind
	ValKind     ValueKind
	Length      uint32
	EnumVariant byte

	// Populated for EventTerminalValue.
	Value Value

	Offset int
	Depth  int
}

// Visitor receives Traverse callbacks. Returning an error aborts the walk.
type Visitor func(Event) error

// Traverse walks a complete payload (the dialect prefix byte, then one
// encoded value with its value-kind byte) without building a Value tree,
// delivering ContainerStart/TerminalValue/ContainerEnd/End events in the
// same order Decode would construct the tree.
//
// This is the "raw traverser" of spec.md §4.A: it must agree with Decode on
// every well-formed payload (the agreement property tested in
// codec_test.go). The typed traverser in codec_schema.go walks the same
// wire format with its own walker, sharing this file's decoder cursor.
func Traverse(data []byte, prefix PayloadPrefix, visit Visitor) error {
	if len(data) == 0 || PayloadPrefix(data[0]) != prefix {
		return ErrBadPrefix
	}
	t := &traverser{decoder: decoder{buf: data, pos: 1}, visit: visit}
	if err := t.walkValue(); err != nil {
		return err
	}
	if t.pos != len(t.buf) {
		return ErrTrailingBytes
	}
	return visit(Event{Kind: EventEnd, Offset: t.pos})
}

type traverser struct {
	decoder
	visit Visitor
}

func (t *traverser) walkValue() error {
	offset := t.pos
	kb, err := t.readByte()
	if err != nil {
		return err
	}
	return t.walkBody(ValueKind(kb), offset)
}

func (t *traverser) walkBody(k ValueKind, offset int) error {
	t.depth++
	defer func() { t.depth-- }()
	if t.depth > MaxNestingDepth {
		return ErrMaxDepthExceeded
	}

	switch k {
	case KindArray:
		ekb, err := t.readByte()
		if err != nil {
			return err
		}
		n, err := t.readU32()
		if err != nil {
			return err
		}
		ek := ValueKind(ekb)
		if err := t.visit(Event{Kind: EventContainerStart, ContainerKind: k, ElementKind: ek, Length: n, Offset: offset, Depth: t.depth}); err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := t.walkBody(ek, t.pos); err != nil {
				return err
			}
		}
		return t.visit(Event{Kind: EventContainerEnd, ContainerKind: k, Offset: t.pos, Depth: t.depth})

	case KindTuple:
		n, err := t.readU32()
		if err != nil {
			return err
		}
		if err := t.visit(Event{Kind: EventContainerStart, ContainerKind: k, Length: n, Offset: offset, Depth: t.depth}); err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := t.walkValue(); err != nil {
				return err
			}
		}
		return t.visit(Event{Kind: EventContainerEnd, ContainerKind: k, Offset: t.pos, Depth: t.depth})

	case KindEnum:
		variant, err := t.readByte()
		if err != nil {
			return err
		}
		n, err := t.readU32()
		if err != nil {
			return err
		}
		if err := t.visit(Event{Kind: EventContainerStart, ContainerKind: k, EnumVariant: variant, Length: n, Offset: offset, Depth: t.depth}); err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := t.walkValue(); err != nil {
				return err
			}
		}
		return t.visit(Event{Kind: EventContainerEnd, ContainerKind: k, Offset: t.pos, Depth: t.depth})

	case KindMap:
		kkb, err := t.readByte()
		if err != nil {
			return err
		}
		vkb, err := t.readByte()
		if err != nil {
			return err
		}
		n, err := t.readU32()
		if err != nil {
			return err
		}
		kk, vk := ValueKind(kkb), ValueKind(vkb)
		if err := t.visit(Event{Kind: EventContainerStart, ContainerKind: k, KeyKind: kk, ValKind: vk, Length: n, Offset: offset, Depth: t.depth}); err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := t.walkBody(kk, t.pos); err != nil {
				return err
			}
			if err := t.walkBody(vk, t.pos); err != nil {
				return err
			}
		}
		return t.visit(Event{Kind: EventContainerEnd, ContainerKind: k, Offset: t.pos, Depth: t.depth})

	default:
		v, err := t.decodeBody(k)
		if err != nil {
			return err
		}
		return t.visit(Event{Kind: EventTerminalValue, Value: v, Offset: offset, Depth: t.depth})
	}
}

// walkBodyErrorf is a small helper kept for schema-layer error messages that
// need an offset-qualified wrapper around ErrTypeMismatch.
func walkBodyErrorf(offset int, format string, args ...interface{}) error {
	return fmt.Errorf("at offset %d: %s: %w", offset, fmt.Sprintf(format, args...), ErrTypeMismatch)
}
