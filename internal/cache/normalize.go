package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/cloo-solutions/companion/internal/domain"
)

const (
	keyHexLen         = 16
	fingerprintHexLen = 8
)

// normalizer reduces near-duplicate phrasings of a question to one form.
type normalizer struct {
	punctuation string
	fillers     [][]string
}

func newNormalizer(punctuation string, fillers []string) normalizer {
	n := normalizer{punctuation: punctuation}
	for _, f := range fillers {
		if words := strings.Fields(strings.ToLower(f)); len(words) > 0 {
			n.fillers = append(n.fillers, words)
		}
	}
	return n
}

// Normalize lowercases, strips punctuation, drops whole-word filler phrases
// and collapses whitespace.
func (n normalizer) Normalize(question string) string {
	lowered := strings.ToLower(strings.TrimSpace(question))
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(n.punctuation, r) {
			return -1
		}
		return r
	}, lowered)

	tokens := strings.Fields(stripped)
	kept := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if skip := n.fillerAt(tokens, i); skip > 0 {
			i += skip
			continue
		}
		kept = append(kept, tokens[i])
		i++
	}
	return strings.Join(kept, " ")
}

// fillerAt returns the length of the first filler phrase starting at
// tokens[i], or 0.
func (n normalizer) fillerAt(tokens []string, i int) int {
	for _, phrase := range n.fillers {
		if i+len(phrase) > len(tokens) {
			continue
		}
		match := true
		for j, w := range phrase {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return len(phrase)
		}
	}
	return 0
}

func hashHex(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}

// Fingerprint summarizes formatted context sections as a short hash. Map
// keys are encoded in sorted order so equal sections share a fingerprint.
func Fingerprint(sections domain.Sections) string {
	if sections == nil {
		sections = domain.Sections{}
	}
	data, err := json.Marshal(map[string]string(sections))
	if err != nil {
		return ""
	}
	return hashHex(string(data), fingerprintHexLen)
}
