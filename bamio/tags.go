package bamio

import (
	"github.com/grailbio/hts/sam"
)

// GetString returns the string value of tag on r, if present.
func GetString(r *sam.Record, tag sam.Tag) (string, bool) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return "", false
	}
	s, ok := aux.Value().(string)
	return s, ok
}

// GetInt returns the integer value of tag on r, if present. The hts aux
// decoder surfaces BAM's various signed/unsigned integer widths as Go's
// sized int types, so the type switch below covers all of them.
func GetInt(r *sam.Record, tag sam.Tag) (int, bool) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return 0, false
	}
	switch v := aux.Value().(type) {
	case int8:
		return int(v), true
	case uint8:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// SetString overwrites tag's value if present, or appends a new 'Z'
// string field otherwise.
func SetString(r *sam.Record, tag sam.Tag, val string) error {
	aux, err := sam.NewAux(tag, val)
	if err != nil {
		return err
	}
	for i, a := range r.AuxFields {
		if a.Tag() == tag {
			r.AuxFields[i] = aux
			return nil
		}
	}
	r.AuxFields = append(r.AuxFields, aux)
	return nil
}

// AppendString always appends a new 'Z' string tag, even if one by the
// same name already exists.
func AppendString(r *sam.Record, tag sam.Tag, val string) error {
	aux, err := sam.NewAux(tag, val)
	if err != nil {
		return err
	}
	r.AuxFields = append(r.AuxFields, aux)
	return nil
}

// MarkDuplicate sets the canonical BAM duplicate flag bit.
func MarkDuplicate(r *sam.Record) {
	r.Flags |= sam.Duplicate
}

// ClearDuplicate clears the canonical BAM duplicate flag bit.
func ClearDuplicate(r *sam.Record) {
	r.Flags &^= sam.Duplicate
}

// MarkQCFail sets the canonical BAM QC-fail flag bit.
func MarkQCFail(r *sam.Record) {
	r.Flags |= sam.QCFail
}

// IsQCFail reports whether r carries the QC-fail flag or is unmapped.
func IsQCFail(r *sam.Record) bool {
	return r.Flags&sam.QCFail != 0 || r.Flags&sam.Unmapped != 0
}

// IsSecondaryOrSupplementary reports whether r is a secondary or
// supplementary alignment by its flag bits. The pipeline does not use
// it: ProcessContig skips secondary alignments by their HI tag instead.
func IsSecondaryOrSupplementary(r *sam.Record) bool {
	return r.Flags&sam.Secondary != 0 || r.Flags&sam.Supplementary != 0
}
