package lmvocab

import (
	"fmt"

	vocaberrors "github.com/tamirms/lmvocab/errors"
)

// checkUnknown applies the unknown-word policy after a text build. Every
// policy gives <unk> the configured fallback probability; Fatal rejects the
// source instead.
func checkUnknown(cfg *config, vocab Vocabulary, weights Weights) error {
	if vocab.SawUnknown() {
		return nil
	}
	switch cfg.unknownMissing {
	case Complain:
		cfg.logger.Warn("vocabulary source is missing <unk>; substituting fallback log10 probability",
			"word", UnknownWord, "logprob", cfg.unknownMissingLogProb)
	case Fatal:
		return fmt.Errorf("%w: the vocabulary source is missing %s and the model is configured to reject it",
			vocaberrors.ErrMissingSpecialWord, UnknownWord)
	}
	if weights.Len() > 0 {
		weights.Set(0, ProbBackoff{Prob: cfg.unknownMissingLogProb})
	}
	return nil
}

// checkSentenceMarkers applies the sentence-marker policy. A missing marker
// keeps identity 0, so Silent and Complain treat it as <unk>.
func checkSentenceMarkers(cfg *config, vocab Vocabulary) error {
	if vocab.BeginSentence() == 0 {
		if err := missingSentenceMarker(cfg, BeginSentence); err != nil {
			return err
		}
	}
	if vocab.EndSentence() == 0 {
		if err := missingSentenceMarker(cfg, EndSentence); err != nil {
			return err
		}
	}
	return nil
}

func missingSentenceMarker(cfg *config, word string) error {
	switch cfg.sentenceMarkerMissing {
	case Complain:
		cfg.logger.Warn("missing special word; will treat it as <unk>", "word", word)
	case Fatal:
		return fmt.Errorf("%w: the vocabulary is missing %s and the model is configured to reject it; "+
			"rebuild with WithSentenceMarkerMissing(Silent) or Complain to disable this check",
			vocaberrors.ErrMissingSpecialWord, word)
	}
	return nil
}
