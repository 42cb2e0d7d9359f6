// Package lmvocab implements the vocabulary of an n-gram language model:
// the mapping from word strings to the dense identities used by the rest of
// the model, backed by memory that can be a mapped binary file.
//
// Two lookup strategies share one contract (Vocabulary). The probing
// vocabulary assigns identities in insert order and looks words up in an
// open-addressing hash table; the sorted vocabulary sorts word hashes once
// and binary-searches them. Identity 0 is always the unknown word.
//
// # Basic Usage
//
// Building from a text vocabulary and saving a binary file:
//
//	m, err := lmvocab.BuildFile("vocab.txt",
//	    lmvocab.WithVocabularyType(lmvocab.ProbingType),
//	    lmvocab.WithBinaryOutput("vocab.bin"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
// Loading the binary file:
//
//	m, err := lmvocab.Open("vocab.bin", lmvocab.WithLoadMethod(lmvocab.PopulateEagerly))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	id := m.IndexString("the")
//	fmt.Printf("the=%d logprob=%v\n", id, m.Weights().At(id).Prob)
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: loader.go (Build, BuildFile), model.go (Open, Verify, WriteBinary)
//   - Configuration: options.go (Option, With* functions), special.go (missing-word policy)
//   - Vocabularies: vocab.go (contract, hashing), probing.go, sorted.go
//   - Serialization: header.go (file header, footer), words.go (word stream), weights.go
//   - Regions and layouts: internal/region (mmap, heap, load methods), internal/layout,
//     internal/probing (hash table)
//   - Reverse lookup: registry/ (owned name to id table)
package lmvocab
