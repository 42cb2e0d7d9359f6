package lmvocab

import (
	"fmt"
	"io"
	"log/slog"

	vocaberrors "github.com/tamirms/lmvocab/errors"
	"github.com/tamirms/lmvocab/internal/region"
	"golang.org/x/text/encoding"
)

// LoadMethod selects how a binary file is brought into memory.
type LoadMethod = region.LoadMethod

// Load methods.
const (
	Lazy            = region.Lazy
	PopulateEagerly = region.PopulateEagerly
	ReadAsHeap      = region.ReadAsHeap
	PopulateOrRead  = region.PopulateOrRead
)

// ParseLoadMethod parses a LoadMethod name.
func ParseLoadMethod(s string) (LoadMethod, error) { return region.ParseLoadMethod(s) }

// MissingPolicy decides what happens when a special word is absent.
type MissingPolicy uint8

const (
	// Silent proceeds with placeholder defaults.
	Silent MissingPolicy = iota
	// Complain logs a warning and substitutes a fallback.
	Complain
	// Fatal fails the load.
	Fatal
)

// String returns the policy name.
func (p MissingPolicy) String() string {
	switch p {
	case Silent:
		return "silent"
	case Complain:
		return "complain"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Option is a functional option for Build, BuildFile, Open and OpenFile.
type Option func(*config)

type config struct {
	vocabType             VocabularyType
	probingMultiplier     float64
	loadMethod            LoadMethod
	unknownMissing        MissingPolicy
	unknownMissingLogProb float32
	sentenceMarkerMissing MissingPolicy
	enumerate             Enumerator
	logger                *slog.Logger
	sourceEncoding        encoding.Encoding
	binaryOutput          string
}

func defaultConfig() *config {
	return &config{
		vocabType:             ProbingType,
		probingMultiplier:     1.5,
		loadMethod:            PopulateOrRead,
		unknownMissing:        Complain,
		unknownMissingLogProb: -100,
		sentenceMarkerMissing: Fatal,
		logger:                slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newConfig(opts []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) validate() error {
	if c.vocabType != ProbingType && c.vocabType != SortedType {
		return fmt.Errorf("%w: vocabulary type %d", vocaberrors.ErrInvalidConfig, c.vocabType)
	}
	if !(c.probingMultiplier > 1) {
		return fmt.Errorf("%w: probing multiplier %v must be greater than 1", vocaberrors.ErrInvalidConfig, c.probingMultiplier)
	}
	if c.loadMethod > PopulateOrRead {
		return fmt.Errorf("%w: load method %d", vocaberrors.ErrInvalidConfig, c.loadMethod)
	}
	if c.unknownMissing > Fatal || c.sentenceMarkerMissing > Fatal {
		return fmt.Errorf("%w: missing-word policy", vocaberrors.ErrInvalidConfig)
	}
	if c.logger == nil {
		return fmt.Errorf("%w: nil logger", vocaberrors.ErrInvalidConfig)
	}
	return nil
}

// WithVocabularyType selects the lookup strategy for Build. Open reads the
// type from the file instead.
func WithVocabularyType(t VocabularyType) Option {
	return func(c *config) {
		c.vocabType = t
	}
}

// WithProbingMultiplier sets the probing table's ratio of slots to words.
// Larger values trade memory for shorter probe sequences. Default 1.5.
func WithProbingMultiplier(m float64) Option {
	return func(c *config) {
		c.probingMultiplier = m
	}
}

// WithLoadMethod sets how Open brings the file into memory.
// Default PopulateOrRead.
func WithLoadMethod(m LoadMethod) Option {
	return func(c *config) {
		c.loadMethod = m
	}
}

// WithUnknownMissing sets the policy for a source without <unk>.
// Default Complain.
func WithUnknownMissing(p MissingPolicy) Option {
	return func(c *config) {
		c.unknownMissing = p
	}
}

// WithUnknownMissingLogProb sets the log10 probability given to <unk> when
// the source lacks it. Default -100.
func WithUnknownMissingLogProb(p float32) Option {
	return func(c *config) {
		c.unknownMissingLogProb = p
	}
}

// WithSentenceMarkerMissing sets the policy for a vocabulary without <s> or
// </s>. Default Fatal.
func WithSentenceMarkerMissing(p MissingPolicy) Option {
	return func(c *config) {
		c.sentenceMarkerMissing = p
	}
}

// WithEnumerator registers a sink that receives every (identity, word) pair.
func WithEnumerator(e Enumerator) Option {
	return func(c *config) {
		c.enumerate = e
	}
}

// WithLogger sets the logger for policy diagnostics. By default nothing is
// logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithSourceEncoding decodes a text source from enc (for example
// charmap.ISO8859_1) instead of UTF-8.
func WithSourceEncoding(enc encoding.Encoding) Option {
	return func(c *config) {
		c.sourceEncoding = enc
	}
}

// WithBinaryOutput makes Build write the finished model to path.
func WithBinaryOutput(path string) Option {
	return func(c *config) {
		c.binaryOutput = path
	}
}
