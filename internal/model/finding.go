package model

// Finding is one raw detection emitted by the external scanner for one
// source location. Line is -1 when the scanner did not report one.
type Finding struct {
	RuleID   string
	Path     string
	Line     int
	Language string
	Snippet  string
}

// AssetType distinguishes a concrete algorithm use from a protocol use.
type AssetType string

const (
	AssetAlgorithm AssetType = "algorithm"
	AssetProtocol  AssetType = "protocol"
)

// Primitive is the coarse cryptographic family of an asset.
type Primitive string

const (
	PrimitiveHash          Primitive = "hash"
	PrimitiveBlockCipher   Primitive = "block-cipher"
	PrimitiveAuthenticated Primitive = "authenticated-encryption"
	PrimitivePublicKey     Primitive = "public-key-encryption"
	PrimitiveRandom        Primitive = "random-generator"
	PrimitiveOther         Primitive = "other"
)

// Asset is the classified form of one Finding, as it appears in the
// inventory document.
type Asset struct {
	Type      AssetType
	Primitive Primitive
	Mode      string // gcm/cbc/ecb/ctr, empty when undetected
	KeySize   string // "128"/"192"/"256", empty when undetected
	Name      string // display name, e.g. "AES-128-CBC"
	Finding   Finding
}
