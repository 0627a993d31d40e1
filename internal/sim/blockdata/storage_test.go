package blockdata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memHolder struct {
	value  string
	found  bool
	writes int
}

func (h *memHolder) Storage() (string, bool) { return h.value, h.found }

func (h *memHolder) SetStorage(value string) {
	h.value = value
	h.found = true
	h.writes++
}

func counterMint() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("tok-%d", n)
	}
}

func TestParse_TokenAndGroups(t *testing.T) {
	raw := "abc\n\n[ToolbarSlots]\n0:t1\n7:t2\n\n[Bindings]\nCamera:t3\n"

	token, groups, ok := Parse(raw)
	require.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.Equal(t, []string{"ToolbarSlots", "Bindings"}, groups.Names())

	slots, _ := groups.Get("ToolbarSlots")
	assert.Equal(t, []string{"0", "7"}, slots.Keys())
	v, _ := slots.Get("7")
	assert.Equal(t, "t2", v)
}

func TestParse_SplitsAtFirstColonAndTrims(t *testing.T) {
	raw := "  tok  \r\n[G]\r\n a:b:c \r\nnocolon\r\n"

	token, groups, ok := Parse(raw)
	require.True(t, ok)
	assert.Equal(t, "tok", token)

	g, _ := groups.Get("G")
	v, _ := g.Get("a")
	assert.Equal(t, "b:c", v)
	v, found := g.Get("")
	assert.True(t, found)
	assert.Equal(t, "", v)
}

func TestParse_RepeatedHeaderReplacesGroup(t *testing.T) {
	token, groups, ok := Parse("t\n[A]\nx:1\n[B]\ny:2\n[A]\nz:3\n")
	require.True(t, ok)
	assert.Equal(t, "t", token)
	assert.Equal(t, []string{"A", "B"}, groups.Names())

	a, _ := groups.Get("A")
	assert.Equal(t, []string{"z"}, a.Keys())
}

func TestParse_RejectsCorruptBlobs(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"blank lines":     "\n \n",
		"no token":        "[A]\nx:1\n",
		"two tokens":      "t1\nt2\n",
		"two tokens gaps": "t1\n\n\nt2\n[A]\nx:1\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			token, groups, ok := Parse(raw)
			assert.False(t, ok)
			assert.Empty(t, token)
			assert.Zero(t, groups.Len())
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	groups := NewGroups()
	slots := groups.Ensure("ToolbarSlots")
	slots.Set("3", "5c0b1f9e-token")
	slots.Set("0", "other")
	groups.Ensure("Empty")
	names := groups.Ensure("ButtonNames")
	names.Set("1", "Open: hangar doors")

	raw := Format("root-token", groups)
	assert.Equal(t, "root-token\n\n[ToolbarSlots]\n3:5c0b1f9e-token\n0:other\n\n[Empty]\n\n[ButtonNames]\n1:Open: hangar doors\n", raw)

	token, parsed, ok := Parse(raw)
	require.True(t, ok)
	assert.Equal(t, "root-token", token)
	assert.True(t, groups.Equal(parsed))
	assert.Equal(t, raw, Format(token, parsed))
}

func TestLoad_MissingStorageMintsAndWrites(t *testing.T) {
	h := &memHolder{}

	d := Load(h, counterMint(), nil)

	assert.Equal(t, "tok-1", d.Token())
	assert.Equal(t, 1, h.writes)
	assert.Equal(t, "tok-1\n", h.value)
}

func TestLoad_CorruptStorageIsReset(t *testing.T) {
	h := &memHolder{value: "a\nb\n[G]\nk:v\n", found: true}

	d := Load(h, counterMint(), nil)

	assert.Equal(t, "tok-1", d.Token())
	assert.Zero(t, d.Groups.Len())
	assert.Equal(t, 1, h.writes)

	token, groups, ok := Parse(h.value)
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)
	assert.Zero(t, groups.Len())
}

func TestLoad_ValidStorageIsNotRewritten(t *testing.T) {
	h := &memHolder{value: "keep\n\n[G]\nk:v\n", found: true}

	d := Load(h, counterMint(), nil)

	assert.Equal(t, "keep", d.Token())
	assert.Zero(t, h.writes)

	d.Groups.Ensure("G").Set("k2", "v2")
	d.Write()
	assert.Equal(t, "keep\n\n[G]\nk:v\nk2:v2\n", h.value)
}

func TestGroup_DeleteKeepsOrder(t *testing.T) {
	g := NewGroup()
	g.Set("a", "1")
	g.Set("b", "2")
	g.Set("c", "3")

	assert.True(t, g.Delete("b"))
	assert.False(t, g.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, g.Keys())

	g.Set("a", "9")
	assert.Equal(t, []string{"a", "c"}, g.Keys())
}
