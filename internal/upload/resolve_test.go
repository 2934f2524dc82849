package upload

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scalarEntry builds the attributes of a plain <input type="file" name="...">.
func scalarEntry(name, typ string, size int64, tmp string, code ErrorCode) Entry {
	return Entry{Name: name, Type: typ, Size: size, TmpName: tmp, Error: int(code)}
}

// nestedDescriptor emulates foo[a], foo[b], ... for m outer and k inner names.
func nestedDescriptor(m, k int, code ErrorCode) *Descriptor {
	d := NewDescriptor()
	for i := 0; i < m; i++ {
		e := Entry{Name: NewTree(), Type: NewTree(), Size: NewTree(), TmpName: NewTree(), Error: NewTree()}
		for j := 0; j < k; j++ {
			key := fmt.Sprintf("inner%d", j)
			e.Name.(*Tree).Set(key, fmt.Sprintf("file-%d-%d.txt", i, j))
			e.Type.(*Tree).Set(key, "text/plain")
			e.Size.(*Tree).Set(key, int64(10*j))
			e.TmpName.(*Tree).Set(key, fmt.Sprintf("/tmp/up-%d-%d", i, j))
			e.Error.(*Tree).Set(key, int(code))
		}
		d.Add(fmt.Sprintf("outer%d", i), e)
	}
	return d
}

func TestResolveNames(t *testing.T) {
	t.Run("empty descriptor", func(t *testing.T) {
		assert.Empty(t, ResolveNames(NewDescriptor()))
		assert.Empty(t, ResolveNames(nil))
	})

	t.Run("scalar fields keep insertion order", func(t *testing.T) {
		d := NewDescriptor().
			Add("zeta", scalarEntry("z.txt", "text/plain", 1, "/tmp/z", CodeOK)).
			Add("alpha", scalarEntry("a.txt", "text/plain", 1, "/tmp/a", CodeOK)).
			Add("mid", scalarEntry("m.txt", "text/plain", 1, "/tmp/m", CodeOK))

		assert.Equal(t, []string{"zeta", "alpha", "mid"}, ResolveNames(d))
	})

	t.Run("nested fields use bracket notation", func(t *testing.T) {
		names := ResolveNames(nestedDescriptor(2, 3, CodeOK))
		assert.Equal(t, []string{
			"outer0[inner0]", "outer0[inner1]", "outer0[inner2]",
			"outer1[inner0]", "outer1[inner1]", "outer1[inner2]",
		}, names)
	})

	t.Run("deep nesting", func(t *testing.T) {
		deep := func(leaf any) *Tree {
			return NewTree().Set("inner", NewTree().Set("2", leaf))
		}
		d := NewDescriptor().Add("outer", Entry{
			Name: deep("a.png"), Type: deep("image/png"), Size: deep(3),
			TmpName: deep("/tmp/a"), Error: deep(0),
		})
		assert.Equal(t, []string{"outer[inner][2]"}, ResolveNames(d))
	})

	t.Run("mixed scalar and nested", func(t *testing.T) {
		d := nestedDescriptor(1, 1, CodeOK)
		d.Add("plain", scalarEntry("p.txt", "", 0, "", CodeNoFile))
		assert.Equal(t, []string{"outer0[inner0]", "plain"}, ResolveNames(d))
	})
}

func TestGather(t *testing.T) {
	t.Run("round trip for every resolved name", func(t *testing.T) {
		d := nestedDescriptor(2, 2, CodePartial)
		for _, name := range ResolveNames(d) {
			a, err := Gather(d, name)
			require.NoError(t, err, name)

			base, keys := splitFieldName(name)
			e, _ := d.Entry(base)
			wantName, _ := e.Name.(*Tree).Get(keys[0])
			wantTmp, _ := e.TmpName.(*Tree).Get(keys[0])
			wantSize, _ := e.Size.(*Tree).Get(keys[0])
			assert.Equal(t, wantName, a.Name)
			assert.Equal(t, wantTmp, a.TmpName)
			assert.Equal(t, wantSize, a.Size)
			assert.Equal(t, "text/plain", a.Type)
			assert.Equal(t, CodePartial, a.Error)
		}
	})

	t.Run("scalar field", func(t *testing.T) {
		d := NewDescriptor().Add("avatar", scalarEntry("pic.png", "image/png", 1024, "/tmp/upl1", CodeOK))
		a, err := Gather(d, "avatar")
		require.NoError(t, err)
		assert.Equal(t, Attributes{Name: "pic.png", Type: "image/png", Size: 1024, TmpName: "/tmp/upl1", Error: CodeOK}, a)
	})

	t.Run("string encoded numbers", func(t *testing.T) {
		d := NewDescriptor().Add("f", Entry{Name: "a", Type: "b", Size: "77", TmpName: "/tmp/x", Error: "4"})
		a, err := Gather(d, "f")
		require.NoError(t, err)
		assert.Equal(t, int64(77), a.Size)
		assert.Equal(t, CodeNoFile, a.Error)
	})

	t.Run("missing key in a parallel tree", func(t *testing.T) {
		d := nestedDescriptor(1, 2, CodeOK)
		e, _ := d.Entry("outer0")
		e.Size = NewTree().Set("inner0", 1)
		d.Add("outer0", e)

		_, err := Gather(d, "outer0[inner1]")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStructuralMismatch)

		var mismatch *StructuralMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, AttrSize, mismatch.Attribute)
		assert.Equal(t, "inner1", mismatch.Key)
	})

	t.Run("unknown base key", func(t *testing.T) {
		_, err := Gather(NewDescriptor(), "nope")
		assert.ErrorIs(t, err, ErrStructuralMismatch)
	})
}

func TestFlattenMismatch(t *testing.T) {
	t.Run("scalar name with nested error", func(t *testing.T) {
		d := NewDescriptor().Add("f", Entry{Name: "a", Type: "", Size: 0, TmpName: "", Error: NewTree().Set("x", 0)})
		_, err := flatten(d)
		var mismatch *StructuralMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, AttrError, mismatch.Attribute)
	})

	t.Run("nested name with scalar type", func(t *testing.T) {
		d := nestedDescriptor(1, 1, CodeOK)
		e, _ := d.Entry("outer0")
		e.Type = "text/plain"
		d.Add("outer0", e)

		_, err := flatten(d)
		assert.ErrorIs(t, err, ErrStructuralMismatch)
		assert.True(t, strings.Contains(err.Error(), AttrType))
	})
}

func TestSplitFieldName(t *testing.T) {
	tests := []struct {
		in   string
		base string
		keys []string
	}{
		{"avatar", "avatar", nil},
		{"outer[inner]", "outer", []string{"inner"}},
		{"outer[inner][2]", "outer", []string{"inner", "2"}},
		{"foo[bar.baz]", "foo", []string{"bar.baz"}},
		{"foo[]", "foo", []string{""}},
		{"foo[open", "foo", []string{"open"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			base, keys := splitFieldName(tt.in)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.keys, keys)
		})
	}
}
