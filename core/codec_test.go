package core

import (
	"reflect"
	"testing"
)

func sampleTuple() Value {
	addr := NodeId{}
	addr[0] = byte(EntityResource)
	amt, _ := NewAmount("66.5")
	return Value{
		Kind: KindTuple,
		Tuple: []Value{
			{Kind: KindBool, Bool: true},
			{Kind: KindU32, Int: IntFromU64(42)},
			{Kind: KindI64, Int: IntValue{Lo: uint64(int64(-7))}},
			{Kind: KindString, Str: "hello worktop"},
			{Kind: KindCustomAddress, Address: addr},
			{Kind: KindCustomDecimal, Decimal: amt},
			{
				Kind:        KindArray,
				ElementKind: KindU8,
				Array: []Value{
					{Kind: KindU8, Int: IntFromU64(1)},
					{Kind: KindU8, Int: IntFromU64(2)},
					{Kind: KindU8, Int: IntFromU64(3)},
				},
			},
			{
				Kind:       KindMap,
				MapKeyKind: KindString,
				MapValKind: KindU64,
				Map: []MapEntry{
					{Key: Value{Kind: KindString, Str: "a"}, Value: Value{Kind: KindU64, Int: IntFromU64(1)}},
					{Key: Value{Kind: KindString, Str: "b"}, Value: Value{Kind: KindU64, Int: IntFromU64(2)}},
				},
			},
			{
				Kind:        KindEnum,
				EnumVariant: 1,
				EnumFields: []Value{
					{Kind: KindString, Str: "variant field"},
				},
			},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	v := sampleTuple()
	data, err := Encode(PrefixScryptoPayload, v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data, PrefixScryptoPayload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(v, got) {
		t.Fatalf("round trip mismatch:\n got=%#v\nwant=%#v", got, v)
	}
}

func TestCodecRejectsTrailingBytes(t *testing.T) {
	v := Value{Kind: KindBool, Bool: true}
	data, err := Encode(PrefixScryptoPayload, v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data = append(data, 0xFF)
	if _, err := Decode(data, PrefixScryptoPayload); err != ErrTrailingBytes {
		t.Fatalf("expected ErrTrailingBytes, got %v", err)
	}
}

func TestCodecRejectsWrongPrefix(t *testing.T) {
	v := Value{Kind: KindBool, Bool: true}
	data, err := Encode(PrefixScryptoPayload, v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(data, PrefixManifestPayload); err != ErrBadPrefix {
		t.Fatalf("expected ErrBadPrefix, got %v", err)
	}
}

func TestCodecMaxDepthExceeded(t *testing.T) {
	v := Value{Kind: KindArray, ElementKind: KindArray}
	cur := &v
	for i := 0; i < MaxNestingDepth+4; i++ {
		inner := Value{Kind: KindArray, ElementKind: KindArray}
		cur.Array = []Value{inner}
		cur = &cur.Array[0]
	}
	cur.Kind = KindArray
	cur.ElementKind = KindU8
	cur.Array = []Value{{Kind: KindU8, Int: IntFromU64(1)}}

	data, err := Encode(PrefixScryptoPayload, v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(data, PrefixScryptoPayload); err != ErrMaxDepthExceeded {
		t.Fatalf("expected ErrMaxDepthExceeded, got %v", err)
	}
}

// TestTraverserAgreesWithDecode checks the agreement property of spec.md
// §8: the raw streaming traverser must observe the same structure Decode
// materializes, in the same order.
func TestTraverserAgreesWithDecode(t *testing.T) {
	v := sampleTuple()
	data, err := Encode(PrefixScryptoPayload, v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(data, PrefixScryptoPayload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var terminals []Value
	var containerStarts []ValueKind
	var containerEnds int
	sawEnd := false

	err = Traverse(data, PrefixScryptoPayload, func(e Event) error {
		switch e.Kind {
		case EventTerminalValue:
			terminals = append(terminals, e.Value)
		case EventContainerStart:
			containerStarts = append(containerStarts, e.ContainerKind)
		case EventContainerEnd:
			containerEnds++
		case EventEnd:
			sawEnd = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if !sawEnd {
		t.Fatalf("traverse never emitted EventEnd")
	}
	if len(containerStarts) != containerEnds {
		t.Fatalf("unbalanced container events: %d starts, %d ends", len(containerStarts), containerEnds)
	}

	flat := flattenTerminals(decoded)
	if len(flat) != len(terminals) {
		t.Fatalf("terminal count mismatch: decode=%d traverse=%d", len(flat), len(terminals))
	}
	for i := range flat {
		if !reflect.DeepEqual(flat[i], terminals[i]) {
			t.Fatalf("terminal %d mismatch: decode=%#v traverse=%#v", i, flat[i], terminals[i])
		}
	}
}

// flattenTerminals walks a decoded Value tree in the same depth-first order
// Traverse visits it, collecting every leaf (non-container) Value.
func flattenTerminals(v Value) []Value {
	switch v.Kind {
	case KindArray:
		var out []Value
		for _, el := range v.Array {
			out = append(out, flattenTerminals(el)...)
		}
		return out
	case KindTuple:
		var out []Value
		for _, f := range v.Tuple {
			out = append(out, flattenTerminals(f)...)
		}
		return out
	case KindEnum:
		var out []Value
		for _, f := range v.EnumFields {
			out = append(out, flattenTerminals(f)...)
		}
		return out
	case KindMap:
		var out []Value
		for _, entry := range v.Map {
			out = append(out, flattenTerminals(entry.Key)...)
			out = append(out, flattenTerminals(entry.Value)...)
		}
		return out
	default:
		return []Value{v}
	}
}

func TestTypedTraverseDetectsMismatch(t *testing.T) {
	v := Value{Kind: KindU32, Int: IntFromU64(7)}
	data, err := Encode(PrefixScryptoPayload, v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	schema := Schema{Types: []TypeKind{{Kind: KindString}}}
	err = TypedTraverse(data, PrefixScryptoPayload, schema, 0, func(TypedEvent) error { return nil })
	if err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestTypedTraverseAnyMatchesEverything(t *testing.T) {
	v := sampleTuple()
	data, err := Encode(PrefixScryptoPayload, v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	schema := Schema{Types: []TypeKind{{Kind: KindAny}}}
	if err := TypedTraverse(data, PrefixScryptoPayload, schema, 0, func(TypedEvent) error { return nil }); err != nil {
		t.Fatalf("typed traverse with Any schema: %v", err)
	}
}

func TestDecimalFixed192RoundTrip(t *testing.T) {
	cases := []string{"0", "66.5", "-66.5", "123456789.123456789012345678", "-1"}
	for _, c := range cases {
		a, err := NewAmount(c)
		if err != nil {
			t.Fatalf("NewAmount(%q): %v", c, err)
		}
		fixed := decimalToFixed192(a)
		back := decimalFromFixed192(fixed)
		if a.Cmp(back) != 0 {
			t.Fatalf("fixed192 round trip mismatch for %q: got %s", c, back.String())
		}
	}
}
