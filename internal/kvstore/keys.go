package kvstore

import "fmt"

// Per-variable record names.
const (
	Dimensions         = "Dimensions"
	Type               = "Type"
	Levels             = "Levels"
	ErrorBounds        = "ErrorBounds"
	StopIndices        = "StopIndices"
	SquaredErrorsShape = "SquaredErrors:Shape"
	SquaredErrors      = "SquaredErrors"
	QueryTableShape    = "QueryTable:Shape"
	QueryTable         = "QueryTable"
	Tiers              = "Tiers"
	Strategy           = "Strategy"
)

// Per-tier record names.
const (
	TierK                     = "K"
	TierM                     = "M"
	TierW                     = "W"
	TierHD                    = "HD"
	TierBackend               = "ECBackendName"
	TierEncodedFragmentLength = "EncodedFragmentLength"
)

// Fragment kinds used in location keys.
const (
	KindData   = "Data"
	KindParity = "Parity"
)

// Key returns "<variable>:<name>".
func Key(variable, name string) string {
	return variable + ":" + name
}

// TierKey returns "<variable>:Tier:<tier>:<name>".
func TierKey(variable string, tier int, name string) string {
	return fmt.Sprintf("%s:Tier:%d:%s", variable, tier, name)
}

// LocationKey returns "<variable>:Tier:<tier>:<kind>:<index>:Location".
func LocationKey(variable string, tier int, kind string, index int) string {
	return fmt.Sprintf("%s:Tier:%d:%s:%d:Location", variable, tier, kind, index)
}
