package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Encode renders v as a complete payload: the dialect prefix byte followed
// by the tagged-tree encoding of v. Encoding is total and deterministic:
// no map-entry reordering is ever performed.
func Encode(prefix PayloadPrefix, v Value) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(prefix))
	if err := encodeValue(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	buf.WriteByte(byte(v.Kind))
	return encodeBody(buf, v.Kind, v)
}

func encodeBody(buf *bytes.Buffer, k ValueKind, v Value) error {
	switch k {
	case KindBool:
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return nil

	case KindI8, KindI16, KindI32, KindI64, KindU8, KindU16, KindU32, KindU64:
		w := intByteWidth(k)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], v.Int.Lo)
		buf.Write(tmp[:w])
		return nil

	case KindI128, KindU128:
		var tmp [16]byte
		binary.LittleEndian.PutUint64(tmp[0:8], v.Int.Lo)
		binary.LittleEndian.PutUint64(tmp[8:16], v.Int.Hi)
		buf.Write(tmp[:])
		return nil

	case KindString:
		writeU32(buf, uint32(len(v.Str)))
		buf.WriteString(v.Str)
		return nil

	case KindArray:
		buf.WriteByte(byte(v.ElementKind))
		writeU32(buf, uint32(len(v.Array)))
		for _, el := range v.Array {
			if err := encodeBody(buf, v.ElementKind, el); err != nil {
				return err
			}
		}
		return nil

	case KindTuple:
		writeU32(buf, uint32(len(v.Tuple)))
		for _, field := range v.Tuple {
			if err := encodeValue(buf, field); err != nil {
				return err
			}
		}
		return nil

	case KindEnum:
		buf.WriteByte(v.EnumVariant)
		writeU32(buf, uint32(len(v.EnumFields)))
		for _, field := range v.EnumFields {
			if err := encodeValue(buf, field); err != nil {
				return err
			}
		}
		return nil

	case KindMap:
		buf.WriteByte(byte(v.MapKeyKind))
		buf.WriteByte(byte(v.MapValKind))
		writeU32(buf, uint32(len(v.Map)))
		for _, entry := range v.Map {
			if err := encodeBody(buf, v.MapKeyKind, entry.Key); err != nil {
				return err
			}
			if err := encodeBody(buf, v.MapValKind, entry.Value); err != nil {
				return err
			}
		}
		return nil

	case KindCustomAddress:
		buf.Write(v.Address[:])
		return nil

	case KindCustomOwn:
		buf.Write(v.Own[:])
		return nil

	case KindCustomDecimal:
		b := decimalToFixed192(v.Decimal)
		buf.Write(b[:])
		return nil

	case KindCustomNonFungibleLocalId:
		return encodeNonFungibleLocalID(buf, v.NFLocalID)

	default:
		return fmt.Errorf("encode: unsupported value kind %s", k)
	}
}

func encodeNonFungibleLocalID(buf *bytes.Buffer, id NonFungibleLocalId) error {
	if err := id.Validate(); err != nil {
		return err
	}
	buf.WriteByte(byte(id.Kind))
	switch id.Kind {
	case NFLocalIDInteger:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], id.Integer)
		buf.Write(tmp[:])
	case NFLocalIDString:
		buf.WriteByte(byte(len(id.Str)))
		buf.WriteString(id.Str)
	case NFLocalIDBytes:
		buf.WriteByte(byte(len(id.Bytes)))
		buf.Write(id.Bytes)
	case NFLocalIDRUID:
		buf.Write(id.RUID[:])
	default:
		return fmt.Errorf("encode: unknown non-fungible local id kind %d", id.Kind)
	}
	return nil
}

func writeU32(buf *bytes.Buffer, n uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], n)
	buf.Write(tmp[:])
}

// --- decode -----------------------------------------------------------

// decoder is a cursor over a byte slice shared by Decode and the traversers
// so all three walk the wire format identically.
type decoder struct {
	buf   []byte
	pos   int
	depth int
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, fmt.Errorf("unexpected end of payload at offset %d", d.pos)
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readN(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("unexpected end of payload at offset %d (need %d bytes)", d.pos, n)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readU32() (uint32, error) {
	b, err := d.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Decode parses a complete payload (dialect prefix + tagged tree), enforcing
// MaxNestingDepth and rejecting trailing bytes.
func Decode(data []byte, wantPrefix PayloadPrefix) (Value, error) {
	if len(data) == 0 || PayloadPrefix(data[0]) != wantPrefix {
		return Value{}, ErrBadPrefix
	}
	d := &decoder{buf: data, pos: 1}
	v, err := d.decodeValue()
	if err != nil {
		return Value{}, err
	}
	if d.pos != len(d.buf) {
		return Value{}, ErrTrailingBytes
	}
	return v, nil
}

func (d *decoder) decodeValue() (Value, error) {
	kb, err := d.readByte()
	if err != nil {
		return Value{}, err
	}
	return d.decodeBody(ValueKind(kb))
}

func (d *decoder) decodeBody(k ValueKind) (Value, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > MaxNestingDepth {
		return Value{}, ErrMaxDepthExceeded
	}

	switch k {
	case KindBool:
		b, err := d.readByte()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: k, Bool: b != 0}, nil

	case KindI8, KindI16, KindI32, KindI64, KindU8, KindU16, KindU32, KindU64:
		w := intByteWidth(k)
		b, err := d.readN(w)
		if err != nil {
			return Value{}, err
		}
		var tmp [8]byte
		copy(tmp[:], b)
		lo := binary.LittleEndian.Uint64(tmp[:])
		if isSignedInt(k) && w < 8 {
			// sign-extend
			shift := uint(64 - w*8)
			lo = uint64(int64(lo<<shift) >> shift)
		}
		return Value{Kind: k, Int: IntValue{Lo: lo}}, nil

	case KindI128, KindU128:
		b, err := d.readN(16)
		if err != nil {
			return Value{}, err
		}
		lo := binary.LittleEndian.Uint64(b[0:8])
		hi := binary.LittleEndian.Uint64(b[8:16])
		return Value{Kind: k, Int: IntValue{Lo: lo, Hi: hi}}, nil

	case KindString:
		n, err := d.readU32()
		if err != nil {
			return Value{}, err
		}
		b, err := d.readN(int(n))
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: k, Str: string(b)}, nil

	case KindArray:
		ekb, err := d.readByte()
		if err != nil {
			return Value{}, err
		}
		n, err := d.readU32()
		if err != nil {
			return Value{}, err
		}
		ek := ValueKind(ekb)
		items := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			item, err := d.decodeBody(ek)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{Kind: k, ElementKind: ek, Array: items}, nil

	case KindTuple:
		n, err := d.readU32()
		if err != nil {
			return Value{}, err
		}
		fields := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			f, err := d.decodeValue()
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, f)
		}
		return Value{Kind: k, Tuple: fields}, nil

	case KindEnum:
		variant, err := d.readByte()
		if err != nil {
			return Value{}, err
		}
		n, err := d.readU32()
		if err != nil {
			return Value{}, err
		}
		fields := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			f, err := d.decodeValue()
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, f)
		}
		return Value{Kind: k, EnumVariant: variant, EnumFields: fields}, nil

	case KindMap:
		kkb, err := d.readByte()
		if err != nil {
			return Value{}, err
		}
		vkb, err := d.readByte()
		if err != nil {
			return Value{}, err
		}
		n, err := d.readU32()
		if err != nil {
			return Value{}, err
		}
		kk, vk := ValueKind(kkb), ValueKind(vkb)
		entries := make([]MapEntry, 0, n)
		for i := uint32(0); i < n; i++ {
			key, err := d.decodeBody(kk)
			if err != nil {
				return Value{}, err
			}
			val, err := d.decodeBody(vk)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: key, Value: val})
		}
		return Value{Kind: k, MapKeyKind: kk, MapValKind: vk, Map: entries}, nil

	case KindCustomAddress:
		b, err := d.readN(NodeIdLen)
		if err != nil {
			return Value{}, err
		}
		var id NodeId
		copy(id[:], b)
		return Value{Kind: k, Address: id}, nil

	case KindCustomOwn:
		b, err := d.readN(NodeIdLen)
		if err != nil {
			return Value{}, err
		}
		var id NodeId
		copy(id[:], b)
		return Value{Kind: k, Own: id}, nil

	case KindCustomDecimal:
		b, err := d.readN(24)
		if err != nil {
			return Value{}, err
		}
		var fixed [24]byte
		copy(fixed[:], b)
		return Value{Kind: k, Decimal: decimalFromFixed192(fixed)}, nil

	case KindCustomNonFungibleLocalId:
		id, err := d.decodeNonFungibleLocalID()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: k, NFLocalID: id}, nil

	default:
		return Value{}, fmt.Errorf("decode: unsupported value kind %s", k)
	}
}

func (d *decoder) decodeNonFungibleLocalID() (NonFungibleLocalId, error) {
	kb, err := d.readByte()
	if err != nil {
		return NonFungibleLocalId{}, err
	}
	kind := NonFungibleLocalIdKind(kb)
	switch kind {
	case NFLocalIDInteger:
		b, err := d.readN(8)
		if err != nil {
			return NonFungibleLocalId{}, err
		}
		return NonFungibleLocalId{Kind: kind, Integer: binary.BigEndian.Uint64(b)}, nil
	case NFLocalIDString:
		n, err := d.readByte()
		if err != nil {
			return NonFungibleLocalId{}, err
		}
		b, err := d.readN(int(n))
		if err != nil {
			return NonFungibleLocalId{}, err
		}
		return NonFungibleLocalId{Kind: kind, Str: string(b)}, nil
	case NFLocalIDBytes:
		n, err := d.readByte()
		if err != nil {
			return NonFungibleLocalId{}, err
		}
		b, err := d.readN(int(n))
		if err != nil {
			return NonFungibleLocalId{}, err
		}
		return NonFungibleLocalId{Kind: kind, Bytes: append([]byte(nil), b...)}, nil
	case NFLocalIDRUID:
		b, err := d.readN(16)
		if err != nil {
			return NonFungibleLocalId{}, err
		}
		var ruid [16]byte
		copy(ruid[:], b)
		return NonFungibleLocalId{Kind: kind, RUID: ruid}, nil
	default:
		return NonFungibleLocalId{}, fmt.Errorf("decode: unknown non-fungible local id kind %d", kb)
	}
}
