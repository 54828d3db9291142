package pipeline

import (
	"strconv"

	"github.com/grailbio/hts/sam"
)

// Fingerprint builds the no-UMI dedup key for r (4.F step 8, no-UMI
// mode): the position-pair derived from alignment geometry,
// concatenated with barcode. As spec.md notes, this key omits the
// reference contig; that is safe only because dedup runs per-contig.
func Fingerprint(r *sam.Record, barcode string) string {
	var left, right int
	if r.Flags&sam.Reverse == 0 {
		left = r.Pos
		right = r.Pos + r.TempLen
	} else {
		left = r.MatePos - r.TempLen
		right = r.MatePos
	}
	return strconv.Itoa(left) + strconv.Itoa(right) + barcode
}
