// Package bamio adapts github.com/grailbio/hts's BAM/BGZF codec to the
// narrow surface the per-contig pipeline needs: random-access contig
// queries, sequential iteration, and tag read/write. It deliberately
// does not reimplement any BGZF or BAI/CSI internals; those are the
// "assumed available as a library" collaborator named in spec.md §1.
package bamio

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// Reader provides random-access and sequential access to one BAM file.
type Reader struct {
	path   string
	file   *os.File
	bamr   *bam.Reader
	index  *bam.Index
	header *sam.Header
}

// ContigInfo describes one reference sequence from the BAM header.
type ContigInfo struct {
	Name string
	Len  int
}

// Open opens path for reading, building or refreshing its .bai index
// if necessary (4.E "Index management"). Only a BAI index is read or
// built; no CSI index is ever created, whatever the size of the BAM.
func Open(ctx context.Context, path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, "bamio: open", path)
	}
	bamr, err := bam.NewReader(f, 0)
	if err != nil {
		f.Close()
		return nil, errors.E(err, "bamio: parsing BAM header", path)
	}
	r := &Reader{path: path, file: f, bamr: bamr, header: bamr.Header()}
	if idx, err := ensureIndex(ctx, path); err != nil {
		log.Error.Printf("bamio: %s: no usable index (%v); random-access queries will fail", path, err)
	} else {
		r.index = idx
	}
	return r, nil
}

// Close releases the reader's underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Header returns the parsed SAM header.
func (r *Reader) Header() *sam.Header { return r.header }

// Contigs returns the ordered (name, length) pairs from the header.
func (r *Reader) Contigs() []ContigInfo {
	refs := r.header.Refs()
	out := make([]ContigInfo, len(refs))
	for i, ref := range refs {
		out[i] = ContigInfo{Name: ref.Name(), Len: ref.Len()}
	}
	return out
}

// RecordIterator yields records until Next returns false, then reports
// Err (nil on clean EOF).
type RecordIterator interface {
	Next() bool
	Record() *sam.Record
	Err() error
}

// QueryContig returns an iterator over all records overlapping the
// named contig's full length, using the BAI index for random access.
func (r *Reader) QueryContig(name string) (RecordIterator, error) {
	ref, ok := refByName(r.header, name)
	if !ok {
		return nil, fmt.Errorf("bamio: unknown contig %q", name)
	}
	if r.index == nil {
		return nil, fmt.Errorf("bamio: no index available for %s, cannot query by contig", r.path)
	}
	chunks, err := r.index.Chunks(ref, 0, ref.Len())
	if err != nil {
		if err == bam.ErrInvalid {
			return &sliceIterator{}, nil // no reads on this contig
		}
		return nil, errors.E(err, "bamio: index lookup for", name)
	}
	it, err := bam.NewIterator(r.bamr, chunks)
	if err != nil {
		return nil, errors.E(err, "bamio: iterator for", name)
	}
	return &htsIterator{it: it}, nil
}

// QueryAll returns a sequential, whole-file iterator (used when there
// are too many contigs to fan out one worker per contig, or cores=1).
func (r *Reader) QueryAll() RecordIterator {
	return &wholeFileIterator{bamr: r.bamr}
}

func refByName(h *sam.Header, name string) (*sam.Reference, bool) {
	for _, ref := range h.Refs() {
		if ref.Name() == name {
			return ref, true
		}
	}
	return nil, false
}

type htsIterator struct {
	it  *bam.Iterator
	err error
}

func (i *htsIterator) Next() bool {
	ok := i.it.Next()
	if !ok {
		i.err = i.it.Error()
	}
	return ok
}
func (i *htsIterator) Record() *sam.Record { return i.it.Record() }
func (i *htsIterator) Err() error          { return i.err }

type wholeFileIterator struct {
	bamr *bam.Reader
	rec  *sam.Record
	err  error
}

func (i *wholeFileIterator) Next() bool {
	rec, err := i.bamr.Read()
	if err != nil {
		if err != io.EOF {
			i.err = err
		}
		return false
	}
	i.rec = rec
	return true
}
func (i *wholeFileIterator) Record() *sam.Record { return i.rec }
func (i *wholeFileIterator) Err() error          { return i.err }

type sliceIterator struct {
	recs []*sam.Record
	pos  int
}

func (s *sliceIterator) Next() bool {
	if s.pos >= len(s.recs) {
		return false
	}
	s.pos++
	return true
}
func (s *sliceIterator) Record() *sam.Record { return s.recs[s.pos-1] }
func (s *sliceIterator) Err() error           { return nil }

// SequentialReader provides plain, unindexed sequential access to a
// BAM file, used for re-reading a shard written by this same process
// (4.F's second UMI-mode phase) where building an index would be
// pure overhead.
type SequentialReader struct {
	file *os.File
	bamr *bam.Reader
}

// OpenSequential opens path for sequential reading only; it does not
// build or consult an index.
func OpenSequential(path string) (*SequentialReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, "bamio: open", path)
	}
	bamr, err := bam.NewReader(f, 0)
	if err != nil {
		f.Close()
		return nil, errors.E(err, "bamio: parsing BAM header", path)
	}
	return &SequentialReader{file: f, bamr: bamr}, nil
}

// Header returns the parsed SAM header.
func (r *SequentialReader) Header() *sam.Header { return r.bamr.Header() }

// Read returns the next record, or io.EOF when exhausted.
func (r *SequentialReader) Read() (*sam.Record, error) {
	return r.bamr.Read()
}

// Close releases the underlying file handle.
func (r *SequentialReader) Close() error {
	return r.file.Close()
}

// Writer accepts records and writes them out as BGZF-compressed BAM.
type Writer struct {
	w    io.WriteCloser
	bamw *bam.Writer
}

// Create opens path for writing with the given header.
func Create(path string, header *sam.Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.E(err, "bamio: create", path)
	}
	bamw, err := bam.NewWriter(f, header, 0)
	if err != nil {
		f.Close()
		return nil, errors.E(err, "bamio: writing header to", path)
	}
	return &Writer{w: f, bamw: bamw}, nil
}

// Write appends one record.
func (w *Writer) Write(r *sam.Record) error {
	return w.bamw.Write(r)
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	return w.w.Close()
}
