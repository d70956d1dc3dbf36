//go:build go1.18

package domain

import (
	"regexp"
	"testing"
	"unicode/utf8"
)

// FuzzParseParticipantID checks parsing never panics and accepted IDs round-trip.
func FuzzParseParticipantID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE participants;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseParticipantID(input)
		if err == nil {
			roundTrip, err2 := ParseParticipantID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
			if id.IsNil() {
				t.Error("nil ID was accepted")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

var canonicalNRIC = regexp.MustCompile(`^[STFGM][0-9]{7}[A-Z]$`)

// FuzzParseNationalID checks normalization is idempotent and only the canonical
// shape is ever accepted.
func FuzzParseNationalID(f *testing.F) {
	f.Add("S1234567A")
	f.Add(" s1234567a ")
	f.Add("s 123 4567 a")
	f.Add("X1234567A")
	f.Add("")
	f.Add("S12345678")
	f.Add(" S1234567A\t")

	f.Fuzz(func(t *testing.T, input string) {
		nid, err := ParseNationalID(input)
		if err != nil {
			return
		}
		if !canonicalNRIC.MatchString(nid.String()) {
			t.Errorf("accepted non-canonical value %q", nid)
		}
		again, err := ParseNationalID(nid.String())
		if err != nil || again != nid {
			t.Errorf("normalization not idempotent for %q", input)
		}
	})
}
