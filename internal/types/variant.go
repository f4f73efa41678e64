package types

import (
	"fmt"
	"strings"
)

// Variant selects one of the two released installer layouts.
type Variant int

const (
	// VariantA patches the boot and root sectors only.
	VariantA Variant = iota + 1
	// VariantB additionally clears the dirty flag and marks the partition active.
	VariantB
)

// Layout holds the constants that differ between variants.
type Layout struct {
	// Preamble is written at BootPreambleOffset.
	Preamble []byte
	// ClearDirtyFlag zeroes BootDirtyFlagOffset.
	ClearDirtyFlag bool
	// MarkPartition runs the partition table scan on the root sector.
	MarkPartition bool
}

// asl.b #4,d0 / bra.s 0x3e. MS-DOS expects the first byte to be a jump opcode
// (0xE9 or 0xEB).
var (
	preambleA = []byte{0xE9, 0x00, 0x60, 0x3A}
	preambleB = []byte{0xEB, 0x00, 0x90, 0x4D, 0x60, 0x38}
)

// ParseVariant accepts "a", "b" (any case) and the String forms. An empty string
// selects VariantB.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "variant-a":
		return VariantA, nil
	case "b", "variant-b", "":
		return VariantB, nil
	default:
		return 0, fmt.Errorf("unknown variant %q (valid: a, b)", s)
	}
}

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case VariantA:
		return "variant-a"
	case VariantB:
		return "variant-b"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Layout returns the constants for the variant. The preamble slice is a copy.
func (v Variant) Layout() (Layout, error) {
	switch v {
	case VariantA:
		return Layout{Preamble: append([]byte(nil), preambleA...)}, nil
	case VariantB:
		return Layout{
			Preamble:       append([]byte(nil), preambleB...),
			ClearDirtyFlag: true,
			MarkPartition:  true,
		}, nil
	default:
		return Layout{}, fmt.Errorf("unsupported variant %d", int(v))
	}
}
