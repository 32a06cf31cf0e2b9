package feed

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decode converts a raw feed body to UTF-8.
//
// The EGP feed declares TIS-620 and usually serves windows-874 bytes (a
// superset of TIS-620), but some gateways re-encode the payload as UTF-8
// without fixing the declaration. Bytes that already form valid UTF-8 are
// taken as-is; everything else goes through the windows-874 table, which
// maps undefined positions to the replacement rune rather than failing, so
// a handful of bad bytes cannot discard a whole poll.
func Decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, _ := charmap.Windows874.NewDecoder().Bytes(raw)
	return string(decoded)
}
