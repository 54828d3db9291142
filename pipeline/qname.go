package pipeline

import "strings"

// qname tag prefixes recognized by ParseQname (4.F step 3). Each is
// exactly 5 characters: a 2-letter tag, ':', 'Z', ':'.
const (
	cbPrefix = "CB:Z:"
	urPrefix = "UR:Z:"
	uyPrefix = "UY:Z:"
)

// ParsedQname holds the fields recovered from a structured read name.
type ParsedQname struct {
	Barcode    string
	UMI        string
	UMIQual    string
	HasBarcode bool
	HasUMI     bool
}

// ParseQname splits a qname on "|||" into TAG:Z:value tokens and
// extracts the barcode/UMI/UMI-quality fields, per 4.F step 3. Tokens
// with an unrecognized prefix are ignored.
func ParseQname(qname string) ParsedQname {
	var p ParsedQname
	for _, tok := range strings.Split(qname, "|||") {
		if len(tok) < 5 {
			continue
		}
		switch tok[:5] {
		case cbPrefix:
			p.Barcode = tok[5:]
			p.HasBarcode = true
		case urPrefix:
			p.UMI = tok[5:]
			p.HasUMI = true
		case uyPrefix:
			p.UMIQual = tok[5:]
		}
	}
	return p
}

// BaseQname returns the portion of qname before its first "|||"
// separator, the name the record keeps once its structured fields have
// been lifted into tags.
func BaseQname(qname string) string {
	if i := strings.Index(qname, "|||"); i >= 0 {
		return qname[:i]
	}
	return qname
}
