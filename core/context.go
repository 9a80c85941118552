package core

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// ContextKind identifies which of the three shapes a Context value takes.
type ContextKind string

const (
	ContextKindString   ContextKind = "string"
	ContextKindSequence ContextKind = "sequence"
	ContextKindMapping  ContextKind = "mapping"
)

// Context is the payload handed to a run: a string, an ordered sequence of
// arbitrary serializable items, or a mapping of named fields to items. The
// three concrete types below form a closed set, mirroring the tagged-Part
// pattern used for conversational content elsewhere in the ecosystem this
// harness grew out of.
type Context interface {
	Kind() ContextKind
	isContext()
}

// StringContext is a Context holding a single opaque string (e.g. the
// contents of an uploaded document).
type StringContext string

func (StringContext) Kind() ContextKind { return ContextKindString }
func (StringContext) isContext()        {}

// SequenceContext is a Context holding an ordered list of arbitrary,
// JSON-serializable items.
type SequenceContext []any

func (SequenceContext) Kind() ContextKind { return ContextKindSequence }
func (SequenceContext) isContext()        {}

// MappingContext is a Context holding named fields, each an arbitrary
// JSON-serializable item.
type MappingContext map[string]any

func (MappingContext) Kind() ContextKind { return ContextKindMapping }
func (MappingContext) isContext()        {}

// maxItemLengthEntries bounds the per-item length breakdown retained on
// ContextMeta before it is compacted into aggregate statistics.
const maxItemLengthEntries = 100

// ContextMeta is the retained summary of a Context, as described in §3:
// type, total character count, a per-item length breakdown (compacted once
// it would exceed 100 entries), an item count, and a head-preview of the
// canonical serialization.
type ContextMeta struct {
	Type        ContextKind    `json:"type"`
	TotalChars  int            `json:"total_chars"`
	ItemCount   int            `json:"item_count"`
	ItemLengths map[string]int `json:"item_lengths,omitempty"`
	Compacted   *LengthSummary `json:"compacted,omitempty"`
	Preview     string         `json:"preview"`
}

// LengthSummary aggregates per-item lengths when there are too many items to
// list individually.
type LengthSummary struct {
	Count int `json:"count"`
	Min   int `json:"min"`
	Max   int `json:"max"`
	Total int `json:"total"`
}

// BuildContextMeta computes a ContextMeta for ctx. previewChars bounds the
// head-preview of the canonical serialization.
func BuildContextMeta(ctx Context, previewChars int) (ContextMeta, error) {
	canonical, itemStrs, err := canonicalize(ctx)
	if err != nil {
		return ContextMeta{}, fmt.Errorf("core: canonicalize context: %w", err)
	}

	meta := ContextMeta{
		Type:       ctx.Kind(),
		TotalChars: utf8.RuneCountInString(canonical),
		ItemCount:  len(itemStrs),
		Preview:    headRunes(canonical, previewChars),
	}

	if len(itemStrs) > maxItemLengthEntries {
		meta.Compacted = summarizeLengths(itemStrs)
	} else if len(itemStrs) > 0 {
		lengths := make(map[string]int, len(itemStrs))
		for k, v := range itemStrs {
			lengths[k] = utf8.RuneCountInString(v)
		}
		meta.ItemLengths = lengths
	}

	return meta, nil
}

// canonicalize renders ctx into its canonical serialization plus a
// per-item breakdown keyed by index (sequence) or field name (mapping). A
// StringContext has no items.
func canonicalize(ctx Context) (canonical string, items map[string]string, err error) {
	switch v := ctx.(type) {
	case StringContext:
		return string(v), nil, nil
	case SequenceContext:
		items = make(map[string]string, len(v))
		for i, item := range v {
			s, err := marshalItem(item)
			if err != nil {
				return "", nil, err
			}
			items[fmt.Sprintf("%d", i)] = s
		}
		raw, err := json.Marshal([]any(v))
		if err != nil {
			return "", nil, err
		}
		return string(raw), items, nil
	case MappingContext:
		items = make(map[string]string, len(v))
		for k, item := range v {
			s, err := marshalItem(item)
			if err != nil {
				return "", nil, err
			}
			items[k] = s
		}
		raw, err := json.Marshal(map[string]any(v))
		if err != nil {
			return "", nil, err
		}
		return string(raw), items, nil
	default:
		return "", nil, fmt.Errorf("core: unsupported context type %T", ctx)
	}
}

func marshalItem(item any) (string, error) {
	if s, ok := item.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func summarizeLengths(items map[string]string) *LengthSummary {
	s := &LengthSummary{Count: len(items)}
	first := true
	for _, v := range items {
		n := utf8.RuneCountInString(v)
		s.Total += n
		if first || n < s.Min {
			s.Min = n
		}
		if first || n > s.Max {
			s.Max = n
		}
		first = false
	}
	return s
}

// headRunes returns the first n runes of s, or s unchanged if it is
// shorter. It never splits a multi-byte rune.
func headRunes(s string, n int) string {
	if n <= 0 || n >= utf8.RuneCountInString(s) {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
