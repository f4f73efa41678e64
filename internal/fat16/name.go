package fat16

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Characters a short name may not contain besides controls and space.
const invalidNameChars = "\"*+,./:;<=>?[\\]|"

// shortName is an 8.3 directory name in the OEM code page, space padded.
type shortName [11]byte

// encodeShortName converts name to its 8.3 form. Only names that already fit
// the 8.3 pattern are accepted; there is no long name support.
func encodeShortName(name string) (shortName, error) {
	var sn shortName
	for i := range sn {
		sn[i] = ' '
	}

	base, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		base, ext = name[:i], name[i+1:]
	}
	base, ext = strings.ToUpper(base), strings.ToUpper(ext)

	encBase, err := charmap.CodePage437.NewEncoder().String(base)
	if err != nil {
		return sn, fmt.Errorf("name %q: %w", name, err)
	}
	encExt, err := charmap.CodePage437.NewEncoder().String(ext)
	if err != nil {
		return sn, fmt.Errorf("name %q: %w", name, err)
	}

	if len(encBase) == 0 || len(encBase) > 8 || len(encExt) > 3 {
		return sn, fmt.Errorf("name %q is not an 8.3 name", name)
	}
	for _, part := range []string{encBase, encExt} {
		for i := 0; i < len(part); i++ {
			c := part[i]
			if c <= ' ' || strings.IndexByte(invalidNameChars, c) >= 0 {
				return sn, fmt.Errorf("name %q contains %q", name, c)
			}
		}
	}

	copy(sn[:8], encBase)
	copy(sn[8:], encExt)
	if sn[0] == deletedMarker {
		sn[0] = 0x05
	}
	return sn, nil
}

// String decodes the name back to "BASE.EXT".
func (sn shortName) String() string {
	raw := sn
	if raw[0] == 0x05 {
		raw[0] = deletedMarker
	}
	dec := charmap.CodePage437.NewDecoder()
	base, _ := dec.Bytes(bytes.TrimRight(raw[:8], " "))
	ext, _ := dec.Bytes(bytes.TrimRight(raw[8:], " "))
	if len(ext) == 0 {
		return string(base)
	}
	return string(base) + "." + string(ext)
}
