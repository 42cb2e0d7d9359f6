package lmvocab

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	vocaberrors "github.com/tamirms/lmvocab/errors"
	"github.com/tamirms/lmvocab/internal/region"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// scannerInitialBuffer is the initial line buffer of the text reader.
	scannerInitialBuffer = 64 * 1024

	// scannerMaxLine is the longest accepted source line.
	scannerMaxLine = 16 * 1024 * 1024
)

// Build reads a text vocabulary from src and returns the finished model.
// entries is an upper bound on the distinct words in src.
//
// Each non-blank line is either a bare word or "logprob word [backoff]".
// A leading byte-order mark is honoured; WithSourceEncoding decodes other
// encodings to UTF-8 before hashing.
func Build(src io.Reader, entries int, opts ...Option) (*Model, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if entries < 0 {
		return nil, fmt.Errorf("%w: negative entry count %d", vocaberrors.ErrInvalidConfig, entries)
	}

	vocabSize, err := RequiredSize(cfg.vocabType, entries, cfg.probingMultiplier)
	if err != nil {
		return nil, err
	}
	mem, err := region.MapAnonymous(headerSize + vocabSize + WeightsSize(entries+1))
	if err != nil {
		return nil, err
	}
	recorder := newWordStreamWriter(cfg.enumerate)

	m, err := build(cfg, src, entries, vocabSize, mem, recorder)
	if err != nil {
		mem.Release()
		recorder.Release()
		return nil, err
	}

	if cfg.binaryOutput != "" {
		if err := m.WriteBinary(cfg.binaryOutput); err != nil {
			return nil, errors.Join(err, m.Close())
		}
		cfg.logger.Info("wrote binary vocabulary", "path", cfg.binaryOutput,
			"type", cfg.vocabType, "words", int(m.Bound())-1)
	}
	return m, nil
}

func build(cfg *config, src io.Reader, entries, vocabSize int, mem *region.Region, recorder *wordStreamWriter) (*Model, error) {
	data := mem.Bytes()
	vocab, err := NewVocabulary(cfg.vocabType)
	if err != nil {
		return nil, err
	}
	if err := vocab.SetupMemory(data[headerSize:headerSize+vocabSize], entries, cfg.probingMultiplier); err != nil {
		return nil, err
	}
	vocab.ConfigureEnumerate(recorder, entries)
	weights := NewWeights(data[headerSize+vocabSize:])

	scanner := bufio.NewScanner(decodeSource(cfg, src))
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxLine)
	line := 0
	for scanner.Scan() {
		line++
		word, pb, ok, err := parseLine(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", vocaberrors.ErrMalformedLine, line, err)
		}
		if !ok {
			continue
		}
		id, err := vocab.Insert(word)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		weights.Set(id, pb)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading vocabulary source: %w", vocaberrors.ErrIO, err)
	}
	if err := recorder.Err(); err != nil {
		return nil, err
	}

	if err := vocab.FinishedLoading(weights); err != nil {
		return nil, err
	}
	if err := recorder.Err(); err != nil {
		return nil, err
	}

	bound := int(vocab.Bound())
	weights = NewWeights(weights.Bytes()[:WeightsSize(bound)])
	if err := checkUnknown(cfg, vocab, weights); err != nil {
		return nil, err
	}
	if err := checkSentenceMarkers(cfg, vocab); err != nil {
		return nil, err
	}

	hdr := &header{
		Magic:       magic,
		Version:     version,
		VocabType:   cfg.vocabType,
		Entries:     uint64(entries),
		Multiplier:  cfg.probingMultiplier,
		Bound:       uint32(bound),
		VocabSize:   uint64(vocabSize),
		WeightsSize: uint64(WeightsSize(bound)),
		WordsSize:   uint64(len(recorder.Bytes())),
	}
	return newBuiltModel(hdr, mem, vocab, recorder), nil
}

// BuildFile builds a model from the text vocabulary at path. The entry count
// is taken from a first pass over the file.
func BuildFile(path string, opts ...Option) (*Model, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open vocabulary source: %w", vocaberrors.ErrIO, err)
	}
	defer file.Close()

	entries, err := countEntries(cfg, file)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: rewinding %s: %w", vocaberrors.ErrIO, path, err)
	}
	cfg.logger.Debug("counted vocabulary entries", "path", path, "entries", entries)
	return Build(file, entries, opts...)
}

// countEntries returns the number of non-blank lines in src, an upper bound
// on its distinct words.
func countEntries(cfg *config, src io.Reader) (int, error) {
	scanner := bufio.NewScanner(decodeSource(cfg, src))
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxLine)
	n := 0
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("%w: counting vocabulary entries: %w", vocaberrors.ErrIO, err)
	}
	return n, nil
}

// decodeSource strips a byte-order mark and decodes the configured source
// encoding to UTF-8. Without an encoding, bytes pass through unchanged.
func decodeSource(cfg *config, src io.Reader) io.Reader {
	var fallback transform.Transformer = transform.Nop
	if cfg.sourceEncoding != nil {
		fallback = cfg.sourceEncoding.NewDecoder()
	}
	return transform.NewReader(src, unicode.BOMOverride(fallback))
}

// parseLine splits one source line. ok is false for blank lines.
func parseLine(line []byte) (word []byte, pb ProbBackoff, ok bool, err error) {
	fields := bytes.Fields(line)
	switch len(fields) {
	case 0:
		return nil, pb, false, nil
	case 1:
		return fields[0], pb, true, nil
	case 2, 3:
		prob, err := strconv.ParseFloat(string(fields[0]), 32)
		if err != nil {
			return nil, pb, false, fmt.Errorf("log probability %q: %w", fields[0], err)
		}
		pb.Prob = float32(prob)
		if len(fields) == 3 {
			backoff, err := strconv.ParseFloat(string(fields[2]), 32)
			if err != nil {
				return nil, pb, false, fmt.Errorf("backoff %q: %w", fields[2], err)
			}
			pb.Backoff = float32(backoff)
		}
		return fields[1], pb, true, nil
	}
	return nil, pb, false, fmt.Errorf("%d fields, want 1 to 3", len(fields))
}
