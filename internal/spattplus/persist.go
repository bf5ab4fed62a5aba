package spattplus

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/screenager/spattplus/internal/graphstore"
	"github.com/screenager/spattplus/internal/metric"
	"github.com/screenager/spattplus/internal/ordertable"
)

// Save writes the built index to dir using the filename convention
// pp_<db>_<vtype>_<space>_<d>_<N>_<W>_<M>_<b>.index (spec §4.5
// "Persistence"). db and vtype identify the collaborator's dataset; dim is
// the vector dimensionality. The third field is the metric name
// (IndexParameters.Space); the name carries no attribute type, since the
// label is the only attribute this index has.
func (b *Builder) Save(dir, db, vtype string, dim int) (string, error) {
	if b.state != stateGrowing {
		return "", ErrBadState
	}
	name := IndexFileName(db, vtype, b.params, dim, b.order.Len())
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("spattplus: create %s: %w", path, err)
	}
	defer f.Close()

	if err := writeIndex(f, b.params, b.currentMaxLayer, b.order, b.store); err != nil {
		return "", err
	}
	b.state = stateSaved
	return path, nil
}

// IndexFileName builds the persisted-index filename described on Save.
func IndexFileName(db, vtype string, p IndexParameters, dim, n int) string {
	return fmt.Sprintf("pp_%s_%s_%s_%d_%d_%d_%d_%d.index", db, vtype, p.Space, dim, n, p.W, p.M, p.B)
}

func writeIndex(w io.Writer, p IndexParameters, maxLayer int, order *ordertable.Table, store *graphstore.Store) error {
	bw := &binaryWriter{w: w}
	bw.writeU32(p.NMax)
	bw.writeU32(p.W)
	bw.writeU32(p.M)
	bw.writeU32(p.B)
	bw.writeString(p.Space)

	bw.writeI32(int32(maxLayer))
	bw.writeU64(uint64(order.Len()))
	bw.writeU64(uint64(store.ElemPerLinklist()) * uint64(store.W()+1))
	raw := store.Raw()
	bw.writeU64(uint64(len(raw)) * 4)
	for _, v := range raw {
		bw.writeU32(v)
	}
	if bw.err != nil {
		return fmt.Errorf("spattplus: write index: %w", bw.err)
	}
	if err := order.Serialize(w); err != nil {
		return fmt.Errorf("spattplus: write order table: %w", err)
	}
	return nil
}

// Load reads an index file written by Save and returns a ready-to-query
// Searcher, validating the on-disk sizes against the header (spec §7
// "Corruption" is fatal).
func Load(path string, vecs VectorStore) (*Searcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("spattplus: open %s: %w", path, err)
	}
	defer f.Close()

	br := &binaryReader{r: f}
	var p IndexParameters
	p.NMax = br.readU32()
	p.W = br.readU32()
	p.M = br.readU32()
	p.B = br.readU32()
	p.Space = br.readString()
	maxLayer := int(br.readI32())
	curVecNum := br.readU64()
	elemPerLinklist := br.readU64()
	bytesLinklist := br.readU64()
	if br.err != nil {
		return nil, fmt.Errorf("spattplus: %w: read header: %v", ErrCorrupted, br.err)
	}

	wantElem := uint64(p.M+1) * uint64(p.W+1)
	if elemPerLinklist != wantElem {
		return nil, fmt.Errorf("spattplus: %w: elem_per_linklist=%d, want %d", ErrCorrupted, elemPerLinklist, wantElem)
	}
	wantWords := uint64(p.NMax) * wantElem
	if bytesLinklist != wantWords*4 {
		return nil, fmt.Errorf("spattplus: %w: bytes_linklist=%d, want %d", ErrCorrupted, bytesLinklist, wantWords*4)
	}

	raw := make([]uint32, wantWords)
	for i := range raw {
		raw[i] = br.readU32()
	}
	if br.err != nil {
		return nil, fmt.Errorf("spattplus: %w: read linklists: %v", ErrCorrupted, br.err)
	}
	store, err := graphstore.LoadRaw(raw, p.NMax, p.W, p.M)
	if err != nil {
		return nil, fmt.Errorf("spattplus: %w: %v", ErrCorrupted, err)
	}

	order, err := ordertable.Deserialize(f)
	if err != nil {
		return nil, fmt.Errorf("spattplus: %w: order table: %v", ErrCorrupted, err)
	}
	if uint64(order.Len()) != curVecNum {
		return nil, fmt.Errorf("spattplus: %w: order table has %d labels, header says %d", ErrCorrupted, order.Len(), curVecNum)
	}

	space, err := metric.New(p.Space)
	if err != nil {
		return nil, fmt.Errorf("spattplus: %w: %v", ErrUnsupportedMetric, err)
	}

	return newSearcher(p, space, vecs, store, order, maxLayer), nil
}

// binaryWriter wraps an io.Writer and accumulates the first error, matching
// the style of the teacher's internal/hnsw persistence helpers.
type binaryWriter struct {
	w   io.Writer
	err error
}

func (bw *binaryWriter) write(v interface{}) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, v)
}
func (bw *binaryWriter) writeU32(v uint32) { bw.write(v) }
func (bw *binaryWriter) writeI32(v int32)  { bw.write(v) }
func (bw *binaryWriter) writeU64(v uint64) { bw.write(v) }
func (bw *binaryWriter) writeString(s string) {
	bw.writeU64(uint64(len(s)))
	if bw.err != nil {
		return
	}
	_, bw.err = io.WriteString(bw.w, s)
}

// binaryReader wraps an io.Reader and accumulates the first error.
type binaryReader struct {
	r   io.Reader
	err error
}

func (br *binaryReader) read(v interface{}) {
	if br.err != nil {
		return
	}
	br.err = binary.Read(br.r, binary.LittleEndian, v)
}
func (br *binaryReader) readU32() uint32 {
	var v uint32
	br.read(&v)
	return v
}
func (br *binaryReader) readI32() int32 {
	var v int32
	br.read(&v)
	return v
}
func (br *binaryReader) readU64() uint64 {
	var v uint64
	br.read(&v)
	return v
}
func (br *binaryReader) readString() string {
	n := br.readU64()
	if br.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		br.err = err
		return ""
	}
	return string(buf)
}
