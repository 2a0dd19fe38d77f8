package domain

// Platform identifies a token-issuance platform. Mints launched on a
// platform carry its name as a suffix of the mint address.
type Platform string

// Supported platforms.
const (
	PlatformPump Platform = "pump"
	PlatformBonk Platform = "bonk"
)

// Platforms lists all tracked platforms in scan order.
var Platforms = []Platform{PlatformPump, PlatformBonk}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformPump || p == PlatformBonk
}

// MintSuffix returns the suffix platform mints end with.
func (p Platform) MintSuffix() string {
	return string(p)
}

// TableName returns the trades table for the platform.
func (p Platform) TableName() string {
	return "trades_" + string(p)
}
