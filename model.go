package lmvocab

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	vocaberrors "github.com/tamirms/lmvocab/errors"
	"github.com/tamirms/lmvocab/internal/region"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Model is a finished vocabulary together with its unigram weights.
//
// The header, vocabulary and weights share one region laid out exactly as
// the binary file prefix, whether the model was built from text (anonymous
// map) or opened from a file (file map or heap read).
//
// Thread Safety:
// - Index, IndexString, Weights and the other read methods are safe for concurrent use
// - Close is NOT safe to call concurrently with reads
// - After Close returns, no methods may be called on the Model except Close and Verify
type Model struct {
	header  *header
	mem     *region.Region
	vocab   Vocabulary
	weights Weights

	// words holds the word stream at wordsBase; a bytes.Reader for built
	// models, the source file for opened ones.
	words     io.ReaderAt
	wordsBase int64

	file     *os.File // non-nil when the model owns its source file
	recorder *wordStreamWriter
	opened   bool
	method   LoadMethod

	closed atomic.Bool
}

// Stats summarizes a model.
type Stats struct {
	Type         VocabularyType
	Words        int // excluding <unk>
	Entries      uint64
	VocabBytes   uint64
	WeightsBytes uint64
	WordsBytes   uint64
	FileSize     uint64
	Origin       string
	BytesPerWord float64
}

// Open opens a binary vocabulary file. The file stays open until Close so
// Verify and WriteBinary can read the word stream.
func Open(path string, opts ...Option) (*Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open vocabulary file: %w", vocaberrors.ErrIO, err)
	}
	m, err := openFile(file, opts)
	if err != nil {
		return nil, errors.Join(err, file.Close())
	}
	m.file = file
	return m, nil
}

// OpenFile opens a binary vocabulary from f. The caller owns f and must keep
// it open until the Model is closed.
func OpenFile(f *os.File, opts ...Option) (*Model, error) {
	return openFile(f, opts)
}

func openFile(f *os.File, opts []Option) (*Model, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat vocabulary file: %w", vocaberrors.ErrIO, err)
	}
	fileSize := uint64(stat.Size())
	if fileSize < headerSize+footerSize {
		return nil, vocaberrors.ErrTruncatedFile
	}

	var buf [headerSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return nil, fmt.Errorf("%w: reading header of %s: %w", vocaberrors.ErrIO, f.Name(), err)
	}
	hdr, err := decodeHeader(buf[:])
	if err != nil {
		return nil, err
	}
	switch want := hdr.fileSize(); {
	case fileSize < want:
		return nil, fmt.Errorf("%w: file is %d bytes, header describes %d", vocaberrors.ErrTruncatedFile, fileSize, want)
	case fileSize > want:
		return nil, fmt.Errorf("%w: file is %d bytes, header describes %d", vocaberrors.ErrCorruptedFile, fileSize, want)
	}

	mem, err := region.MapRead(cfg.loadMethod, f, 0, int(hdr.wordsOffset()))
	if err != nil {
		return nil, err
	}

	m := &Model{
		header:    hdr,
		mem:       mem,
		words:     f,
		wordsBase: int64(hdr.wordsOffset()),
		opened:    true,
		method:    cfg.loadMethod.Resolve(),
	}
	if err := m.attach(cfg, f); err != nil {
		mem.Release()
		return nil, err
	}
	return m, nil
}

// attach runs LoadedBinary over the mapped prefix and enforces the sentence
// marker policy.
func (m *Model) attach(cfg *config, f *os.File) error {
	hdr := m.header
	data := m.mem.Bytes()

	vocab, err := NewVocabulary(hdr.VocabType)
	if err != nil {
		return err
	}
	if err := vocab.SetupMemory(data[headerSize:hdr.weightsOffset()], int(hdr.Entries), hdr.Multiplier); err != nil {
		return err
	}

	var words io.Reader
	if cfg.enumerate != nil {
		region.AdviseSequential(f, m.wordsBase, int64(hdr.WordsSize))
		words = io.NewSectionReader(f, m.wordsBase, int64(hdr.WordsSize))
	}
	if err := vocab.LoadedBinary(words, cfg.enumerate); err != nil {
		return err
	}
	if uint32(vocab.Bound()) != hdr.Bound {
		return fmt.Errorf("%w: vocabulary bound %d, file header bound %d",
			vocaberrors.ErrCorruptedFile, vocab.Bound(), hdr.Bound)
	}
	if err := checkSentenceMarkers(cfg, vocab); err != nil {
		return err
	}

	m.vocab = vocab
	m.weights = NewWeights(data[hdr.weightsOffset():hdr.wordsOffset()])
	return nil
}

// Vocabulary returns the word lookup.
func (m *Model) Vocabulary() Vocabulary { return m.vocab }

// Weights returns the per-identity unigram weights, Bound records long.
func (m *Model) Weights() Weights { return m.weights }

// Bound returns one more than the highest identity.
func (m *Model) Bound() WordIndex { return m.vocab.Bound() }

// Index returns the identity of word, 0 if absent.
func (m *Model) Index(word []byte) WordIndex { return m.vocab.Index(word) }

// IndexString is Index for a string.
func (m *Model) IndexString(word string) WordIndex { return m.vocab.IndexString(word) }

// Stats returns statistics for the model.
func (m *Model) Stats() *Stats {
	hdr := m.header
	s := &Stats{
		Type:         hdr.VocabType,
		Words:        int(hdr.Bound) - 1,
		Entries:      hdr.Entries,
		VocabBytes:   hdr.VocabSize,
		WeightsBytes: hdr.WeightsSize,
		WordsBytes:   hdr.WordsSize,
		FileSize:     hdr.fileSize(),
		Origin:       m.mem.Origin().String(),
	}
	if m.opened {
		s.Origin += "/" + m.method.String()
	}
	if s.Words > 0 {
		s.BytesPerWord = float64(hdr.fileSize()) / float64(s.Words)
	}
	return s
}

// WriteBinary writes the model to path in the binary file format. path must
// not be the file an opened model is reading from.
func (m *Model) WriteBinary(path string) error {
	if m.closed.Load() {
		return vocaberrors.ErrModelClosed
	}
	hdr := m.header
	out, file, err := region.MapZeroedWrite(path, int(hdr.fileSize()))
	if err != nil {
		return err
	}

	data := out.Bytes()
	prefix := m.mem.Bytes()[:hdr.wordsOffset()]
	copy(data, prefix)

	words := data[hdr.wordsOffset():hdr.footerOffset()]
	if _, err := m.words.ReadAt(words, m.wordsBase); err != nil && !(errors.Is(err, io.EOF) && len(words) == 0) {
		out.Release()
		primaryErr := fmt.Errorf("%w: copying word stream: %w", vocaberrors.ErrIO, err)
		return errors.Join(primaryErr, file.Close())
	}

	ftr := footer{
		RegionHash: xxhash.Sum64(prefix),
		WordsHash:  xxh3.Hash(words),
	}
	ftr.encodeTo(data[hdr.footerOffset():])

	if err := out.Flush(); err != nil {
		out.Release()
		return errors.Join(err, file.Close())
	}
	out.Release()
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", vocaberrors.ErrIO, path, err)
	}
	return nil
}

// Verify recomputes both footer checksums of the file the model was opened
// from. A model built from text has no footer and always verifies.
func (m *Model) Verify() error {
	if m.closed.Load() {
		return vocaberrors.ErrModelClosed
	}
	if !m.opened {
		return nil
	}
	hdr := m.header

	var buf [footerSize]byte
	if _, err := m.words.ReadAt(buf[:], int64(hdr.footerOffset())); err != nil {
		return fmt.Errorf("%w: reading footer: %w", vocaberrors.ErrIO, err)
	}
	ft, err := decodeFooter(buf[:])
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		if xxhash.Sum64(m.mem.Bytes()[:hdr.wordsOffset()]) != ft.RegionHash {
			return fmt.Errorf("%w: header, vocabulary or weights region", vocaberrors.ErrChecksumFailed)
		}
		return nil
	})
	g.Go(func() error {
		h := xxh3.New()
		if _, err := io.Copy(h, io.NewSectionReader(m.words, m.wordsBase, int64(hdr.WordsSize))); err != nil {
			return fmt.Errorf("%w: reading word stream: %w", vocaberrors.ErrIO, err)
		}
		if h.Sum64() != ft.WordsHash {
			return fmt.Errorf("%w: word stream", vocaberrors.ErrChecksumFailed)
		}
		return nil
	})
	return g.Wait()
}

// Close releases the model's regions and, for Open, its file.
// It is idempotent.
func (m *Model) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.mem.Release()
	if m.recorder != nil {
		m.recorder.Release()
	}
	if m.file != nil {
		err := m.file.Close()
		m.file = nil
		if err != nil {
			return fmt.Errorf("%w: closing vocabulary file: %w", vocaberrors.ErrIO, err)
		}
	}
	return nil
}

// newBuiltModel wraps a finished text build. mem holds the header, vocab and
// weights; the header is encoded into it here.
func newBuiltModel(hdr *header, mem *region.Region, vocab Vocabulary, recorder *wordStreamWriter) *Model {
	data := mem.Bytes()
	hdr.encodeTo(data[:headerSize])
	return &Model{
		header:   hdr,
		mem:      mem,
		vocab:    vocab,
		weights:  NewWeights(data[hdr.weightsOffset():hdr.wordsOffset()]),
		words:    bytes.NewReader(recorder.Bytes()),
		recorder: recorder,
	}
}
