package objects

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

const gitVerboseOutput = `count: 1523
size: 6100
in-pack: 48210
packs: 7
size-pack: 91234
prune-packable: 12
garbage: 0
size-garbage: 0
`

func TestParseGitVerboseOutput(t *testing.T) {
	got := Parse(gitVerboseOutput)
	want := Counts{
		"count":         "1523",
		"size":          "6100",
		"inpack":        "48210",
		"packs":         "7",
		"sizepack":      "91234",
		"prunepackable": "12",
		"garbage":       "0",
		"sizegarbage":   "0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSingleLineOutput(t *testing.T) {
	got := Parse("count: 500 size: 12 inpack: 100 packs: 2 sizepack: 5 prunepackable: 0 garbage: 0 sizegarbage: 0")

	assert.Equal(t, int64(500), got.Count())
	assert.Equal(t, int64(2), got.Packs())
	assert.Equal(t, int64(5), got.SizePackKiB())
	assert.Len(t, got, 8)
}

func TestParseIsIdempotent(t *testing.T) {
	first := Parse(gitVerboseOutput)
	second := Parse(gitVerboseOutput)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Parse() not deterministic (-first +second):\n%s", diff)
	}
}

func TestParseToleratesPaddingAndUnknownFields(t *testing.T) {
	out := "  count :   42\n\n\tpacks:3   \nfuture-field:  hello world\n"
	got := Parse(out)

	assert.Equal(t, "42", got[KeyCount])
	assert.Equal(t, "3", got[KeyPacks])
	assert.Equal(t, "hello world", got["futurefield"])
}

func TestParseMissingAndEmpty(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "whitespace", in: " \n\t "},
		{name: "garbage text", in: "fatal: not a git repository (or any of the parent directories): .git"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			assert.Equal(t, int64(0), got.Count())
			assert.Equal(t, int64(0), got.Packs())
		})
	}
}

func TestParseEmptyValue(t *testing.T) {
	got := Parse("count: packs: 4")
	assert.Equal(t, "", got[KeyCount])
	assert.Equal(t, int64(0), got.Count())
	assert.Equal(t, int64(4), got.Packs())
}

func TestIntNonNumeric(t *testing.T) {
	c := Counts{"count": "lots", "packs": "12 packs", "size": ""}

	assert.Equal(t, int64(0), c.Int("count"))
	assert.Equal(t, int64(12), c.Int("packs"))
	assert.Equal(t, int64(0), c.Int("size"))
	assert.Equal(t, int64(0), c.Int("absent"))
}

func TestKeysSorted(t *testing.T) {
	c := Parse("packs: 1 count: 2 garbage: 0")
	assert.Equal(t, []string{"count", "garbage", "packs"}, c.Keys())
}
