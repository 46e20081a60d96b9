package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Storage tags carried verbatim on chain. Inline data can be parsed as is;
// walrus data holds a reference to a remote blob.
const (
	inlineStorageTag = "inline"
	walrusStorageTag = "walrus"
)

// StorageKind identifies where the payload of a NexusData value lives.
type StorageKind uint8

const (
	StorageInline StorageKind = iota
	StorageWalrus
)

func (k StorageKind) String() string {
	switch k {
	case StorageInline:
		return inlineStorageTag
	case StorageWalrus:
		return walrusStorageTag
	}
	return "unknown"
}

// EncryptionMode describes how the payload is protected at rest.
type EncryptionMode uint8

const (
	// EncryptionPlain - the payload is stored in the clear.
	EncryptionPlain EncryptionMode = 0
	// EncryptionStandard - the payload is encrypted with a session key.
	EncryptionStandard EncryptionMode = 1
	// EncryptionLimitedPersistent - the payload is encrypted with a
	// limited-persistence key that outlives a single session.
	EncryptionLimitedPersistent EncryptionMode = 2
)

// IsEncrypted reports whether the payload requires decryption before use.
func (m EncryptionMode) IsEncrypted() bool { return m != EncryptionPlain }

// NexusData wraps raw data stored on chain: input ports, output ports or
// default values. The payload is either a single JSON value or an ordered
// array of JSON values.
//
// As a storage optimisation arrays are stored as one blob containing a JSON
// array instead of multiple blobs.
type NexusData struct {
	Kind  StorageKind
	Mode  EncryptionMode
	Value interface{}
}

// NewInline creates inline data that is not encrypted.
func NewInline(value interface{}) *NexusData {
	return &NexusData{Kind: StorageInline, Mode: EncryptionPlain, Value: value}
}

// NewInlineEncrypted creates inline data encrypted with the standard mode.
func NewInlineEncrypted(value interface{}) *NexusData {
	return &NexusData{Kind: StorageInline, Mode: EncryptionStandard, Value: value}
}

// NewWalrus creates remote-blob data that is not encrypted.
func NewWalrus(value interface{}) *NexusData {
	return &NexusData{Kind: StorageWalrus, Mode: EncryptionPlain, Value: value}
}

// NewWalrusEncrypted creates remote-blob data encrypted with the standard mode.
func NewWalrusEncrypted(value interface{}) *NexusData {
	return &NexusData{Kind: StorageWalrus, Mode: EncryptionStandard, Value: value}
}

// byteSeq serialises as a JSON array of integers rather than the base64
// string encoding/json would use for []byte. The on-chain wire form is
// position-sensitive so this representation is format-bearing.
type byteSeq []byte

func (b byteSeq) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	out = append(out, ']')
	return out, nil
}

func (b *byteSeq) UnmarshalJSON(data []byte) error {
	var raw []uint16
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]byte, len(raw))
	for i, v := range raw {
		if v > 0xff {
			return fmt.Errorf("byte value out of range: %d", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// nexusDataWire is the fixed on-chain representation:
// { storage: bytes, one: bytes, many: bytes[], encryption_mode: u8 }.
// one and many are mutually exclusive; one carries single values, many
// carries arrays of values.
type nexusDataWire struct {
	Storage        byteSeq   `json:"storage"`
	One            byteSeq   `json:"one"`
	Many           []byteSeq `json:"many"`
	EncryptionMode uint8     `json:"encryption_mode"`
}

// MarshalJSON encodes the envelope into its wire form. Arrays are split into
// the many field element by element; any other value is encoded whole into
// the one field.
func (d *NexusData) MarshalJSON() ([]byte, error) {
	wire := nexusDataWire{
		One:            byteSeq{},
		Many:           []byteSeq{},
		EncryptionMode: uint8(d.Mode),
	}
	switch d.Kind {
	case StorageInline:
		wire.Storage = byteSeq(inlineStorageTag)
	case StorageWalrus:
		wire.Storage = byteSeq(walrusStorageTag)
	default:
		return nil, fmt.Errorf("unknown storage kind: %d", d.Kind)
	}

	if values, ok := d.Value.([]interface{}); ok {
		wire.Many = make([]byteSeq, 0, len(values))
		for _, value := range values {
			data, err := EncodeJSONValue(value)
			if err != nil {
				return nil, err
			}
			wire.Many = append(wire.Many, data)
		}
	} else {
		data, err := EncodeJSONValue(d.Value)
		if err != nil {
			return nil, err
		}
		wire.One = data
	}
	return json.Marshal(&wire)
}

// UnmarshalJSON decodes the wire form. Unknown storage tags and encryption
// modes outside {0,1,2} are hard failures.
func (d *NexusData) UnmarshalJSON(data []byte) error {
	var wire nexusDataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.EncryptionMode > uint8(EncryptionLimitedPersistent) {
		return fmt.Errorf("invalid encryption mode: %d", wire.EncryptionMode)
	}

	var kind StorageKind
	switch string(wire.Storage) {
	case inlineStorageTag:
		kind = StorageInline
	case walrusStorageTag:
		kind = StorageWalrus
	default:
		return fmt.Errorf("unknown storage tag: %q", string(wire.Storage))
	}

	var value interface{}
	if len(wire.One) > 0 {
		parsed, err := DecodeJSONBytes(wire.One)
		if err != nil {
			return err
		}
		value = parsed
	} else {
		values := make([]interface{}, 0, len(wire.Many))
		for _, item := range wire.Many {
			parsed, err := DecodeJSONBytes(item)
			if err != nil {
				return err
			}
			values = append(values, parsed)
		}
		value = values
	}

	d.Kind = kind
	d.Mode = EncryptionMode(wire.EncryptionMode)
	d.Value = value
	return nil
}
