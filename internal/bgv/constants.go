package bgv

import "fmt"

// Magic is the 4-byte signature at the start of every BGV file.
const Magic = "BIGV"

// Version is a (major, minor) BGV format version.
type Version struct {
	Major int8
	Minor int8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// SupportedVersions is the allow-list checked by ReadFileHeader.
var SupportedVersions = []Version{
	{Major: 6, Minor: 1},
	{Major: 7, Minor: 0},
}

// Supported reports whether v is in SupportedVersions.
func (v Version) Supported() bool {
	for _, s := range SupportedVersions {
		if s == v {
			return true
		}
	}
	return false
}

// Top-level tokens.
const (
	BeginGroup    = 0x00
	BeginGraph    = 0x01
	CloseGroup    = 0x02
	BeginDocument = 0x03
)

// Pool object tags.
const (
	PoolNew            = 0x00
	PoolString         = 0x01
	PoolEnum           = 0x02
	PoolClass          = 0x03
	PoolMethod         = 0x04
	PoolNull           = 0x05
	PoolNodeClass      = 0x06
	PoolField          = 0x07
	PoolSignature      = 0x08
	PoolSourcePosition = 0x09
	PoolNode           = 0x0a
)

// Property value tags.
const (
	PropertyPool     = 0x00
	PropertyInt      = 0x01
	PropertyLong     = 0x02
	PropertyDouble   = 0x03
	PropertyFloat    = 0x04
	PropertyTrue     = 0x05
	PropertyFalse    = 0x06
	PropertyArray    = 0x07
	PropertySubgraph = 0x08
)

// Class kinds following a pooled class name.
const (
	Klass     = 0x00
	EnumKlass = 0x01
)

// DefaultMaxDepth bounds nested subgraphs and nested pool entries.
const DefaultMaxDepth = 256
