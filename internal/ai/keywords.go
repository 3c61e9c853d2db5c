package ai

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

type keywordGroup struct {
	Name  string
	Words []string
}

// keywordIndex matches text against groups of keywords in one pass.
// The underlying matcher keeps per-call state, so Match is serialized.
type keywordIndex struct {
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
	owners  []int // keyword index -> group index
	groups  []keywordGroup
}

func newKeywordIndex(groups []keywordGroup) *keywordIndex {
	idx := &keywordIndex{groups: groups}

	var words []string
	for gi, g := range groups {
		for _, w := range g.Words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			words = append(words, w)
			idx.owners = append(idx.owners, gi)
		}
	}
	if len(words) > 0 {
		idx.matcher = ahocorasick.NewStringMatcher(words)
	}
	return idx
}

// Match returns the names of every group with at least one keyword in text,
// in declaration order.
func (k *keywordIndex) Match(text string) []string {
	if k.matcher == nil || text == "" {
		return nil
	}

	k.mu.Lock()
	hits := k.matcher.Match([]byte(strings.ToLower(text)))
	k.mu.Unlock()

	seen := make([]bool, len(k.groups))
	for _, h := range hits {
		if h < len(k.owners) {
			seen[k.owners[h]] = true
		}
	}

	var out []string
	for gi, ok := range seen {
		if ok {
			out = append(out, k.groups[gi].Name)
		}
	}
	return out
}

// First returns the first matching group name, or "" when nothing matches
func (k *keywordIndex) First(text string) string {
	if m := k.Match(text); len(m) > 0 {
		return m[0]
	}
	return ""
}
