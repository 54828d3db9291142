package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/Schaudge/scrnatag/annotation"
	"github.com/Schaudge/scrnatag/bamio"
	"github.com/Schaudge/scrnatag/classify"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIterator is a minimal bamio.RecordIterator over an in-memory slice,
// used to drive ProcessContig without a real BAM file.
type fakeIterator struct {
	recs []*sam.Record
	pos  int
}

func (f *fakeIterator) Next() bool {
	if f.pos >= len(f.recs) {
		return false
	}
	f.pos++
	return true
}
func (f *fakeIterator) Record() *sam.Record { return f.recs[f.pos-1] }
func (f *fakeIterator) Err() error          { return nil }

func testGene(t *testing.T) *annotation.Index {
	t.Helper()
	records := []annotation.Record{
		{FeatureType: "exon", Contig: "chr1", Start: 100, End: 300, Strand: '+', GeneName: "G1", GeneID: "G1", TranscriptID: "T1"},
	}
	result := &annotation.LoadResult{Genes: map[string][]annotation.Record{"G1": records}}
	return annotation.NewIndex(nil, result)
}

func newTestHeader(t *testing.T) *sam.Header {
	t.Helper()
	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)
	return h
}

func newTestRecord(t *testing.T, header *sam.Header, name string, pos int) *sam.Record {
	t.Helper()
	ref := header.Refs()[0]
	return &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    40,
		Cigar:   sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 50)},
		TempLen: 50,
	}
}

func TestProcessContigNoUMIMode(t *testing.T) {
	header := newTestHeader(t)
	index := testGene(t)
	classifier := classify.New(classify.Options{Policy: classify.DropSeqV2})

	r1 := newTestRecord(t, header, "read1|||CB:Z:AAACCC", 100)
	iter := &fakeIterator{recs: []*sam.Record{r1}}

	dir := t.TempDir()
	w, err := bamio.Create(filepath.Join(dir, "shard.bam"), header)
	require.NoError(t, err)

	result, err := ProcessContig("chr1", iter, index, classifier, Config{MapQThreshold: 10}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.EqualValues(t, 1, result.Metrics.Total)
	assert.EqualValues(t, 1, result.Metrics.Filtered)
	assert.EqualValues(t, 1, result.Metrics.Annotated)
	assert.EqualValues(t, 1, result.Metrics.Unique)
	assert.EqualValues(t, 0, result.Metrics.Duplicate)
}

func TestProcessContigLowQualityDropped(t *testing.T) {
	header := newTestHeader(t)
	index := testGene(t)
	classifier := classify.New(classify.Options{Policy: classify.DropSeqV2})

	r1 := newTestRecord(t, header, "read1|||CB:Z:AAACCC", 100)
	r1.MapQ = 5
	iter := &fakeIterator{recs: []*sam.Record{r1}}

	dir := t.TempDir()
	w, err := bamio.Create(filepath.Join(dir, "shard.bam"), header)
	require.NoError(t, err)

	result, err := ProcessContig("chr1", iter, index, classifier, Config{MapQThreshold: 10}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.EqualValues(t, 1, result.Metrics.Total)
	assert.EqualValues(t, 0, result.Metrics.Filtered)
}

func TestProcessContigSecondaryAlignmentSkipped(t *testing.T) {
	header := newTestHeader(t)
	index := testGene(t)
	classifier := classify.New(classify.Options{Policy: classify.DropSeqV2})

	r1 := newTestRecord(t, header, "read1|||CB:Z:AAACCC", 100)
	aux, err := sam.NewAux(sam.NewTag("HI"), 2)
	require.NoError(t, err)
	r1.AuxFields = append(r1.AuxFields, aux)

	iter := &fakeIterator{recs: []*sam.Record{r1}}
	dir := t.TempDir()
	w, err := bamio.Create(filepath.Join(dir, "shard.bam"), header)
	require.NoError(t, err)

	result, err := ProcessContig("chr1", iter, index, classifier, Config{MapQThreshold: 10}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.EqualValues(t, 0, result.Metrics.Total)
}

func TestProcessContigUMIModeDedup(t *testing.T) {
	header := newTestHeader(t)
	index := testGene(t)
	classifier := classify.New(classify.Options{Policy: classify.DropSeqV2})

	r1 := newTestRecord(t, header, "read1|||CB:Z:AAACCC|||UR:Z:ACGTACGT", 100)
	r2 := newTestRecord(t, header, "read2|||CB:Z:AAACCC|||UR:Z:ACGTACGT", 100)
	iter := &fakeIterator{recs: []*sam.Record{r1, r2}}

	dir := t.TempDir()
	w, err := bamio.Create(filepath.Join(dir, "shard.bam"), header)
	require.NoError(t, err)

	result, err := ProcessContig("chr1", iter, index, classifier, Config{MapQThreshold: 10, UMIOn: true}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.EqualValues(t, 2, result.Metrics.Total)
	assert.EqualValues(t, 2, result.Metrics.Annotated)
	assert.EqualValues(t, 1, result.Metrics.Unique)
	assert.EqualValues(t, 1, result.Metrics.Duplicate)
	require.NotNil(t, result.Histogram)
}

func TestProcessContigUMIWithNDiscarded(t *testing.T) {
	header := newTestHeader(t)
	index := testGene(t)
	classifier := classify.New(classify.Options{Policy: classify.DropSeqV2})

	r1 := newTestRecord(t, header, "read1|||CB:Z:AAACCC|||UR:Z:ACGTNCGT", 100)
	iter := &fakeIterator{recs: []*sam.Record{r1}}

	dir := t.TempDir()
	w, err := bamio.Create(filepath.Join(dir, "shard.bam"), header)
	require.NoError(t, err)

	result, err := ProcessContig("chr1", iter, index, classifier, Config{MapQThreshold: 10, UMIOn: true}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.EqualValues(t, 1, result.Metrics.Total)
	assert.EqualValues(t, 1, result.Metrics.Annotated)
	assert.EqualValues(t, 0, result.Metrics.Unique)
}

