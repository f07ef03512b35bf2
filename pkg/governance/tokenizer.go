// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"container/list"
	"crypto/sha1" //nolint:gosec // tokens are pseudonyms, not credentials
	"encoding/hex"
	"strings"
	"sync"
)

// DefaultTokenTableSize bounds the process-wide tokenization map.
const DefaultTokenTableSize = 10000

// tokenTable is the process-wide value-to-token map behind the tokenize
// mask. Tokens are hash-derived, so the same input always yields the same
// token even across eviction; the table memoizes them and is LRU-bounded so
// masking unbounded result streams cannot grow memory without limit.
type tokenTable struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front is most recently used
	entries  map[string]*list.Element // value -> element holding tokenEntry
}

type tokenEntry struct {
	value string
	token string
}

func newTokenTable(capacity int) *tokenTable {
	if capacity <= 0 {
		capacity = DefaultTokenTableSize
	}
	return &tokenTable{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// token returns the token for a value, minting and remembering it on first
// use. Safe for concurrent use.
func (t *tokenTable) token(value string) string {
	if isToken(value) {
		return value
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.entries[value]; ok {
		t.order.MoveToFront(el)
		return el.Value.(*tokenEntry).token
	}

	sum := sha1.Sum([]byte(value)) //nolint:gosec
	tok := "tok_" + hex.EncodeToString(sum[:])[:10]

	t.entries[value] = t.order.PushFront(&tokenEntry{value: value, token: tok})
	for t.order.Len() > t.capacity {
		oldest := t.order.Back()
		t.order.Remove(oldest)
		delete(t.entries, oldest.Value.(*tokenEntry).value)
	}

	return tok
}

// isToken reports whether value is already a minted token. Tokenizing a
// token returns it unchanged.
func isToken(value string) bool {
	const want = len("tok_") + 10
	if len(value) != want || !strings.HasPrefix(value, "tok_") {
		return false
	}
	_, err := hex.DecodeString(value[len("tok_"):])
	return err == nil
}

// len reports the number of resident tokens.
func (t *tokenTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
