package annotation

import "context"

// LoadIndex reads a GTF or GFF3 annotation file and builds the per-contig
// Index the per-contig pipeline queries; it is Load followed by NewIndex.
func LoadIndex(ctx context.Context, path string) (*Index, error) {
	result, err := Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewIndex(ctx, result), nil
}
