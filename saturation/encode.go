// Package saturation implements the sequencing-saturation sampler
// (4.I): a random-shuffle, quantile-sweep estimator of per-barcode
// read saturation and genes-per-barcode, in two barcode-geometry
// variants (coordinate and sequence).
package saturation

import "fmt"

// base2i is the bijective base-4 encoding table spec.md §3.I/§9 names
// but leaves unfixed; this implementation pins it as A=0,C=1,G=2,T=3,
// matching the original's _base2i table (saturation.cpp).
var base2i = map[byte]uint32{
	'A': 0,
	'C': 1,
	'G': 2,
	'T': 3,
}

var i2base = [4]byte{'A', 'C', 'G', 'T'}

// EncodeUMI packs a UMI string over {A,C,G,T} into a uint32 by treating
// it as a base-4 number, most significant base first.
func EncodeUMI(umi string) (uint32, error) {
	var code uint32
	for i := 0; i < len(umi); i++ {
		b, ok := base2i[umi[i]]
		if !ok {
			return 0, fmt.Errorf("saturation: invalid base %q in umi %q", umi[i], umi)
		}
		code = code*4 + b
	}
	return code, nil
}

// DecodeUMI is EncodeUMI's inverse: it reconstructs the length-long UMI
// string that encodes to code, per spec.md invariant "base-4
// encode/decode of UMIs ... is bijective".
func DecodeUMI(code uint32, length int) string {
	buf := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		buf[i] = i2base[code&0x3]
		code >>= 2
	}
	return string(buf)
}
