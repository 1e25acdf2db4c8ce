package evo

import (
	"strconv"
	"strings"
)

// SignatureRegistry assigns a stable dense id to each distinct action
// sequence. The first-seen sequence defines the signature; structurally
// identical sequences map to the same id.
type SignatureRegistry struct {
	ids  map[string]int
	next int
}

func NewSignatureRegistry() *SignatureRegistry {
	return &SignatureRegistry{ids: make(map[string]int)}
}

// Signature returns the sequence's id, issuing a new one on first sight.
func (r *SignatureRegistry) Signature(actions []int) int {
	key := sequenceKey(actions)
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := r.next
	r.ids[key] = id
	r.next++
	return id
}

// Len is the number of distinct sequences seen.
func (r *SignatureRegistry) Len() int {
	return len(r.ids)
}

func sequenceKey(actions []int) string {
	var b strings.Builder
	b.Grow(len(actions) * 3)
	for i, action := range actions {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(action))
	}
	return b.String()
}
