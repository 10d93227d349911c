// Package discovery locates the NamePool, GUObjectArray and GWorld
// globals inside the target's main module by signature scanning with
// structural validation. The package also provides a bounded proximity
// scan (Check); the locators do not call it, and a locator whose
// signatures all fail returns NotFound.
package discovery

// Signature is one known byte pattern with the position of its
// RIP-relative 32-bit displacement and the total instruction length.
// target = match + InstrLen + displacement.
type Signature struct {
	Pattern    string
	DispOffset int
	InstrLen   int
}

var namePoolSignatures = []Signature{
	{"4C 8D 05 ? ? ? ? EB 16 48 8D 0D ? ? ? ? E8", 3, 7},
	{"48 8D 0D ? ? ? ? E8 ? ? ? ? ? 8B ? C6", 3, 7},
	{"48 83 EC 28 48 8B 05 ? ? ? ? 48 85 C0 75 ? B9 ? ? 00 00 48 89 5C 24 20 E8", 7, 11},
	{"C3 ? DB 48 89 1D ? ? ? ? ? ? 48 8B 5C 24 20", 6, 10},
	{"33 F6 89 35 ? ? ? ? 8B C6 5E", 4, 8},
	{"8B 07 8B 0D ? ? ? ? 8B 04 81", 4, 8},
}

var guObjectArraySignatures = []Signature{
	{"44 8B ? ? ? 48 8D 05 ? ? ? ? ? ? ? ? ? 48 89 71 10", 8, 12},
	{"40 53 48 83 EC 20 48 8B D9 48 85 D2 74 ? 8B", 22, 26},
	{"4C 8B 05 ? ? ? ? 45 3B 88", 3, 7},
	{"4C 8B 44 24 60 8B 44 24 78 ? ? ? 48 8D", 15, 19},
	{"8B 44 24 04 56 8B F1 85 C0 74 17 8B 40 08", 16, 20},
	{"8B 15 ? ? ? ? 8B 04 82 85", 2, 6},
	{"56 48 83 ? ? 48 89 ? ? ? 48 89 ? 48 8D", 16, 20},
}

var gWorldSignatures = []Signature{
	{"48 8B 1D ? ? ? ? 48 85 DB 74 33 41 B0 01", 3, 7},
}

// User-space pointer bounds used as a fast sanity filter.
const (
	minUserAddress = 0x10000
	maxUserAddress = 0x7FFFFFFFFFFF
)
