// Package id generates prefixed NanoIDs for highlights, annotations and replies.
package id

import (
	"fmt"
	"strings"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each kind of record. The prefix makes an id self-describing in
// logs and in the persisted blobs.
const (
	PrefixHighlight  = "hl"
	PrefixAnnotation = "ann"
	PrefixReply      = "reply"
	PrefixClient     = "client"
	PrefixDecoration = "deco"
)

// Generate returns "prefix-<nanoid>" using the default 21-character
// URL-safe alphabet.
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// MustGenerate is like Generate but panics when the system has no entropy.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// HasPrefix reports whether v was generated with prefix.
func HasPrefix(v, prefix string) bool {
	return strings.HasPrefix(v, prefix+"-")
}

// Generator produces ids for a given prefix. Services hold one so tests can
// substitute a deterministic sequence.
type Generator func(prefix string) (string, error)

// Sequence returns a Generator yielding "prefix-1", "prefix-2", ... per prefix.
func Sequence() Generator {
	var mu sync.Mutex
	counters := make(map[string]int)
	return func(prefix string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		counters[prefix]++
		return fmt.Sprintf("%s-%d", prefix, counters[prefix]), nil
	}
}
