package core

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/bech32"
)

// EntityType is the one-byte discriminant prefixed onto every NodeId,
// telling the kernel (and any human reading an address) what kind of node
// it addresses without a store lookup.
type EntityType byte

const (
	EntityResource EntityType = iota + 1
	EntityPackage
	EntityComponent
	EntityInternalVault
	EntityInternalKeyValueStore
	EntityInternalIndex
	EntityAccount
	EntityIdentity
	EntityValidator
)

func (t EntityType) String() string {
	switch t {
	case EntityResource:
		return "resource"
	case EntityPackage:
		return "package"
	case EntityComponent:
		return "component"
	case EntityInternalVault:
		return "internal_vault"
	case EntityInternalKeyValueStore:
		return "internal_kv_store"
	case EntityInternalIndex:
		return "internal_index"
	case EntityAccount:
		return "account"
	case EntityIdentity:
		return "identity"
	case EntityValidator:
		return "validator"
	default:
		return fmt.Sprintf("entity(0x%02x)", byte(t))
	}
}

// NodeIdLen is the fixed width of a NodeId: one entity-type byte followed
// by 29 bytes of (deterministic or random) identifier material.
const NodeIdLen = 30

// NodeId is the stable identity of a substate-store node. The zero value is
// never valid; allocate_node_id is the only primitive that mints one.
type NodeId [NodeIdLen]byte

func (id NodeId) EntityType() EntityType { return EntityType(id[0]) }

func (id NodeId) IsGlobal() bool {
	switch id.EntityType() {
	case EntityResource, EntityPackage, EntityComponent, EntityAccount, EntityIdentity, EntityValidator:
		return true
	default:
		return false
	}
}

func (id NodeId) Hex() string { return "0x" + hex.EncodeToString(id[:]) }

func (id NodeId) String() string { return id.Hex() }

// networkHRPs maps a network identifier to its Bech32m human-readable part,
// per spec.md §6.1 ("rdx" mainnet, "sim" simulator, ...).
var networkHRPs = map[string]string{
	"mainnet":   "rdx",
	"simulator": "sim",
	"testnet":   "tdx",
}

// Bech32mAddress renders a NodeId in its text form: a Bech32m encoding using
// the network-specific HRP. Only globalized node ids have a meaningful text
// address; owned node ids are addressed only via their parent.
func Bech32mAddress(network string, id NodeId) (string, error) {
	hrp, ok := networkHRPs[network]
	if !ok {
		return "", fmt.Errorf("unknown network %q", network)
	}
	converted, err := bech32.ConvertBits(id[:], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	return bech32.EncodeM(hrp, converted)
}

// ParseBech32mAddress recovers the NodeId encoded in a Bech32m text address,
// verifying it was minted for the expected network.
func ParseBech32mAddress(network, text string) (NodeId, error) {
	hrp, data, err := bech32.DecodeNoLimit(text)
	if err != nil {
		return NodeId{}, fmt.Errorf("bech32 decode: %w", err)
	}
	wantHRP, ok := networkHRPs[network]
	if !ok {
		return NodeId{}, fmt.Errorf("unknown network %q", network)
	}
	if hrp != wantHRP {
		return NodeId{}, fmt.Errorf("address is for network %q, expected %q", hrp, wantHRP)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return NodeId{}, fmt.Errorf("convert bits: %w", err)
	}
	if len(raw) != NodeIdLen {
		return NodeId{}, fmt.Errorf("decoded address has %d bytes, want %d", len(raw), NodeIdLen)
	}
	var id NodeId
	copy(id[:], raw)
	return id, nil
}
