// Package vecio implements the VectorStore and QueryStore collaborator
// contracts spec §6 requires but leaves external to the core: loading dense
// base vectors, query vectors and per-query attribute filters from flat
// binary files. Grounded on original_source/src/common/dataloader.hh's
// Loadfvecs/LoadQueryFilter, which use exactly this on-disk shape (a
// little-endian dimension header per vector, ifstream-style sequential
// reads, and a 2*uint32-per-query filter file) without any third-party
// vector-file-format library — the pack carries no fvecs/ivecs reader
// anywhere, so this stays stdlib the same way the original does.
package vecio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/screenager/spattplus/internal/spattplus"
)

// MemVectorStore is an in-memory VectorStore: a plain slice of base
// vectors, label i at index i. Satisfies spattplus.VectorStore.
type MemVectorStore [][]float32

func (m MemVectorStore) VecOf(label uint32) []float32 { return m[label] }
func (m MemVectorStore) Len() int                     { return len(m) }

var _ spattplus.VectorStore = MemVectorStore(nil)

// LoadFvecs reads the fvecs format dataloader.hh documents: for each
// vector, a little-endian int32 dimension followed by that many float32
// components, repeated until EOF (or maxN vectors, whichever comes first).
func LoadFvecs(path string, maxN int) (MemVectorStore, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("vecio: open %s: %w", path, err)
	}
	defer f.Close()

	var out MemVectorStore
	dim := -1
	r := newCountingReader(f)
	for maxN <= 0 || len(out) < maxN {
		var d int32
		if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
			if err == io.EOF {
				break
			}
			return nil, 0, fmt.Errorf("vecio: %s: read dim at vector %d: %w", path, len(out), err)
		}
		if dim == -1 {
			dim = int(d)
		} else if int(d) != dim {
			return nil, 0, fmt.Errorf("vecio: %s: ragged dimension at vector %d: got %d, want %d", path, len(out), d, dim)
		}
		vec := make([]float32, d)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, 0, fmt.Errorf("vecio: %s: read vector %d: %w", path, len(out), err)
		}
		out = append(out, vec)
	}
	if dim == -1 {
		dim = 0
	}
	return out, dim, nil
}

// SaveFvecs writes vecs back out in the same format LoadFvecs reads; the
// demo CLI's build command uses it to write the vector sidecar file that
// search and browse load.
func SaveFvecs(path string, vecs MemVectorStore) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vecio: create %s: %w", path, err)
	}
	defer f.Close()
	for _, v := range vecs {
		if err := binary.Write(f, binary.LittleEndian, int32(len(v))); err != nil {
			return fmt.Errorf("vecio: %s: write dim: %w", path, err)
		}
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("vecio: %s: write vector: %w", path, err)
		}
	}
	return nil
}

// QueryFilterFile is the QueryStore collaborator: a query vector set loaded
// the same way as base vectors, paired with a filter file of 2*uint32
// (l, u) ranges, one pair per query (dataloader.hh's LoadQueryFilter).
type QueryFilterFile struct {
	vecs    MemVectorStore
	filters [][2]uint32
}

var _ spattplus.QueryStore = (*QueryFilterFile)(nil)

// LoadQueryFilterFile loads queryPath (fvecs) and filterPath (flat
// 2*uint32-per-query binary) together, failing if their counts disagree.
func LoadQueryFilterFile(queryPath, filterPath string) (*QueryFilterFile, error) {
	vecs, _, err := LoadFvecs(queryPath, 0)
	if err != nil {
		return nil, err
	}

	fb, err := os.ReadFile(filterPath)
	if err != nil {
		return nil, fmt.Errorf("vecio: open %s: %w", filterPath, err)
	}
	const recSize = 8
	if len(fb)%recSize != 0 {
		return nil, fmt.Errorf("vecio: %s: size %d is not a multiple of %d", filterPath, len(fb), recSize)
	}
	n := len(fb) / recSize
	if n != len(vecs) {
		return nil, fmt.Errorf("vecio: %s: %d filters, want %d (one per query vector)", filterPath, n, len(vecs))
	}
	filters := make([][2]uint32, n)
	for i := range filters {
		filters[i][0] = binary.LittleEndian.Uint32(fb[i*recSize:])
		filters[i][1] = binary.LittleEndian.Uint32(fb[i*recSize+4:])
	}
	return &QueryFilterFile{vecs: vecs, filters: filters}, nil
}

func (q *QueryFilterFile) QueryVec(i int) []float32   { return q.vecs[i] }
func (q *QueryFilterFile) Filter(i int) (l, u uint32) { return q.filters[i][0], q.filters[i][1] }
func (q *QueryFilterFile) Count() int                 { return len(q.vecs) }

type countingReader struct {
	r io.Reader
}

func newCountingReader(r io.Reader) *countingReader { return &countingReader{r: r} }
func (c *countingReader) Read(p []byte) (int, error) { return c.r.Read(p) }
