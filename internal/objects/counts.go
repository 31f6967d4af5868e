// Package objects parses the output of `git count-objects -v`.
package objects

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Labels emitted by `git count-objects -v`, with hyphens removed.
const (
	KeyCount         = "count"
	KeySize          = "size"
	KeyInPack        = "inpack"
	KeyPacks         = "packs"
	KeySizePack      = "sizepack"
	KeyPrunePackable = "prunepackable"
	KeyGarbage       = "garbage"
	KeySizeGarbage   = "sizegarbage"
)

var labelPattern = regexp.MustCompile(`\b(\w+)\s*:`)

// Counts maps a diagnostic label to its raw text value. Labels that git did not
// emit are simply absent.
type Counts map[string]string

// Parse scrapes `label: value` pairs out of raw diagnostic text. Hyphens are
// dropped so "size-pack" becomes "sizepack", whitespace runs (newlines
// included) collapse to one space, and each value runs up to the next label or
// the end of the text. Field order and field set are not assumed.
func Parse(out string) Counts {
	normalized := strings.Join(strings.Fields(strings.ReplaceAll(out, "-", "")), " ")

	counts := Counts{}
	matches := labelPattern.FindAllStringSubmatchIndex(normalized, -1)
	for i, m := range matches {
		label := normalized[m[2]:m[3]]
		end := len(normalized)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		counts[label] = strings.TrimSpace(normalized[m[1]:end])
	}
	return counts
}

// Int returns the integer value of key, or 0 when the key is missing or its
// value is not a number.
func (c Counts) Int(key string) int64 {
	raw, ok := c[key]
	if !ok {
		return 0
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Count is the number of loose objects.
func (c Counts) Count() int64 { return c.Int(KeyCount) }

// Packs is the number of pack files.
func (c Counts) Packs() int64 { return c.Int(KeyPacks) }

// SizePackKiB is the disk space consumed by packs, in KiB.
func (c Counts) SizePackKiB() int64 { return c.Int(KeySizePack) }

// Keys returns the labels in sorted order.
func (c Counts) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
