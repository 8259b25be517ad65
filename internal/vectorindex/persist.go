package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moodreel/core/internal/models"
)

type persistPaths struct {
	dir          string
	vectorsFile  string
	payloadsFile string
}

func newPersistPaths(dir string) persistPaths {
	return persistPaths{
		dir:          dir,
		vectorsFile:  filepath.Join(dir, "faiss_index.bin"),
		payloadsFile: filepath.Join(dir, "embeddings_cache.pkl"),
	}
}

// Persist writes vectors (binary) and payloads (gob-serialized) under
// INDEX_DIR, each via write-temp-then-rename so a crash mid-write never
// leaves a corrupt file in place. Both writes happen while holding the
// writer lock, so the two files are always consistent with each other.
func (idx *Index) Persist() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := os.MkdirAll(idx.paths.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := writeAtomic(idx.paths.vectorsFile, func(f *os.File) error {
		return writeVectors(f, idx.vectors)
	}); err != nil {
		return fmt.Errorf("persist vectors: %w", err)
	}
	if err := writeAtomic(idx.paths.payloadsFile, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(idx.payloads)
	}); err != nil {
		return fmt.Errorf("persist payloads: %w", err)
	}
	return nil
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeVectors(f *os.File, vectors [][]float32) error {
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, int64(len(vectors))); err != nil {
		return err
	}
	for _, v := range vectors {
		if err := binary.Write(w, binary.LittleEndian, int64(len(v))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readVectors(f *os.File) ([][]float32, error) {
	r := bufio.NewReader(f)
	var n int64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	vectors := make([][]float32, n)
	for i := int64(0); i < n; i++ {
		var dim int64
		if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
			return nil, err
		}
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Load reverses Persist. On any error (missing file, corrupt blob,
// mismatched lengths) it falls back to an empty index rather than
// propagating, matching the spec's "index corruption downgrades to
// empty" error policy.
func (idx *Index) Load() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	vectors, payloads, ok := idx.tryLoad()
	if !ok {
		idx.vectors = nil
		idx.payloads = nil
		idx.byKey = make(map[itemKey]int)
		idx.ivf = nil
		idx.kind = IndexTypeFlat
		return
	}
	idx.vectors = vectors
	idx.payloads = payloads
	idx.byKey = make(map[itemKey]int, len(payloads))
	for i, p := range payloads {
		idx.byKey[itemKey{p.ContentType, p.TMDBID}] = i
	}
	idx.ivf = nil
	idx.kind = IndexTypeFlat
}

func (idx *Index) tryLoad() ([][]float32, []models.CatalogueItem, bool) {
	vf, err := os.Open(idx.paths.vectorsFile)
	if err != nil {
		return nil, nil, false
	}
	defer vf.Close()
	vectors, err := readVectors(vf)
	if err != nil {
		return nil, nil, false
	}

	pf, err := os.Open(idx.paths.payloadsFile)
	if err != nil {
		return nil, nil, false
	}
	defer pf.Close()
	var payloads []models.CatalogueItem
	if err := gob.NewDecoder(pf).Decode(&payloads); err != nil {
		return nil, nil, false
	}

	if len(vectors) != len(payloads) {
		return nil, nil, false
	}
	return vectors, payloads, true
}
