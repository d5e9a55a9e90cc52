// Package dedup decides whether a chunk enters the derived log. Exact
// dedup (content-hash equality) is always active; near-duplicate
// suppression by token-set similarity is opt-in. First-seen wins in
// both modes: suppressed chunks are counted by the caller, not stored.
package dedup

import (
	"strings"
	"unicode"

	"github.com/hyenadev/hyena/internal/checksum"
)

// State classifies a dedup decision.
type State int

const (
	New State = iota
	ExactDuplicate
	NearDuplicate
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case New:
		return "new"
	case ExactDuplicate:
		return "exact_duplicate"
	case NearDuplicate:
		return "near_duplicate"
	default:
		return "unknown"
	}
}

// Decision is the outcome for one chunk. Hash is always set; Score is
// meaningful only for NearDuplicate.
type Decision struct {
	State State
	Hash  string
	Score float64
}

// Config tunes near-duplicate suppression.
type Config struct {
	// Semantic enables similarity suppression beyond exact hashes.
	Semantic bool
	// Threshold is the Jaccard score at or above which a chunk is
	// suppressed.
	Threshold float64
	// Window bounds the recently accepted chunks compared against, so
	// the comparison never goes O(n²) over the whole log.
	Window int
}

type windowEntry struct {
	seq    int
	tokens map[string]struct{}
}

// Engine holds the seen-hash set and the recent-chunk window. Not safe
// for concurrent use; the ingestion pipeline drives it sequentially.
type Engine struct {
	cfg  Config
	seen map[string]struct{}

	nextSeq    int
	recent     []windowEntry
	tokenIndex map[string][]int // token -> seqs of window entries containing it
}

// NewEngine builds an engine seeded with previously seen content hashes
// (typically a snapshot from the derived log).
func NewEngine(seen map[string]struct{}, cfg Config) *Engine {
	if seen == nil {
		seen = make(map[string]struct{})
	}
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	return &Engine{
		cfg:        cfg,
		seen:       seen,
		tokenIndex: make(map[string][]int),
	}
}

// Decide classifies text. A New decision registers the chunk, so the
// next identical or near-identical chunk is suppressed.
func (e *Engine) Decide(text string) Decision {
	hash := checksum.SumText(text)
	if _, ok := e.seen[hash]; ok {
		return Decision{State: ExactDuplicate, Hash: hash}
	}

	var tokens map[string]struct{}
	if e.cfg.Semantic {
		tokens = Tokenize(text)
		if score, hit := e.nearest(tokens); hit && score >= e.cfg.Threshold {
			return Decision{State: NearDuplicate, Hash: hash, Score: score}
		}
	}

	e.seen[hash] = struct{}{}
	if e.cfg.Semantic {
		e.admit(tokens)
	}
	return Decision{State: New, Hash: hash}
}

// Seed admits text into the recent-chunk window without registering
// its hash, so re-ingestion compares new chunks against atoms already
// in the log. No-op when semantic mode is off.
func (e *Engine) Seed(text string) {
	if !e.cfg.Semantic {
		return
	}
	e.admit(Tokenize(text))
}

// nearest returns the best similarity between tokens and any window
// entry sharing at least one token.
func (e *Engine) nearest(tokens map[string]struct{}) (float64, bool) {
	if len(e.recent) == 0 {
		return 0, false
	}
	minSeq := e.recent[0].seq
	best := -1.0
	checked := make(map[int]struct{})
	for tok := range tokens {
		for _, seq := range e.tokenIndex[tok] {
			if seq < minSeq {
				continue // evicted from the window
			}
			if _, done := checked[seq]; done {
				continue
			}
			checked[seq] = struct{}{}
			if s := Jaccard(tokens, e.recent[seq-minSeq].tokens); s > best {
				best = s
			}
		}
	}
	return best, best >= 0
}

// admit adds tokens to the window, evicting the oldest entry past the
// configured bound.
func (e *Engine) admit(tokens map[string]struct{}) {
	e.recent = append(e.recent, windowEntry{seq: e.nextSeq, tokens: tokens})
	for tok := range tokens {
		e.tokenIndex[tok] = append(e.tokenIndex[tok], e.nextSeq)
	}
	e.nextSeq++

	if len(e.recent) > e.cfg.Window {
		evicted := e.recent[0]
		e.recent = e.recent[1:]
		for tok := range evicted.tokens {
			seqs := e.tokenIndex[tok]
			if len(seqs) > 0 && seqs[0] == evicted.seq {
				seqs = seqs[1:]
			}
			if len(seqs) == 0 {
				delete(e.tokenIndex, tok)
			} else {
				e.tokenIndex[tok] = seqs
			}
		}
	}
}

// markdownStripper removes markdown punctuation that would otherwise
// glue onto words, so "**Focus:**" and "Focus" tokenize identically.
var markdownStripper = strings.NewReplacer(
	"**", " ", "[", " ", "]", " ", "(", " ", ")", " ", ":", " ",
)

// Tokenize lowercases text and splits it into its set of alphanumeric
// tokens, after stripping markdown punctuation.
func Tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(markdownStripper.Replace(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets are identical.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
