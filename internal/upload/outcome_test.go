package upload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailure_Messages(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want string
	}{
		{OversizeServer, "The file size exceeds the server-allowed limit."},
		{OversizeForm, "The file size exceeds the form-allowed upload limit."},
		{Partial, "The file was only partially uploaded."},
		{NoFile, "No file was uploaded."},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			f := &Failure{fieldName: "f", kind: tt.kind}
			assert.Equal(t, tt.want, f.ErrorMessage())
		})
	}
}

func TestSetErrorMessage(t *testing.T) {
	original := (&Failure{kind: Partial}).ErrorMessage()
	t.Cleanup(func() { _ = SetErrorMessage(Partial, original) })

	require.NoError(t, SetErrorMessage(Partial, "Upload interrompu."))
	assert.Equal(t, "Upload interrompu.", (&Failure{kind: Partial}).ErrorMessage())

	err := SetErrorMessage(FailureKind(99), "nope")
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestFailure_Predicates(t *testing.T) {
	limits := StaticLimits{System: 2 << 20, Form: 1024}

	t.Run("oversize server", func(t *testing.T) {
		f := &Failure{kind: OversizeServer}
		limit, ok := f.IsTooBig(limits)
		assert.True(t, ok)
		assert.Equal(t, int64(2<<20), limit)
		_, partial := f.IsPartial()
		assert.False(t, partial)
		assert.False(t, f.NotUploaded())
		assert.Equal(t, CodeIniSize, f.Code())
	})

	t.Run("oversize form", func(t *testing.T) {
		f := &Failure{kind: OversizeForm}
		limit, ok := f.IsTooBig(limits)
		assert.True(t, ok)
		assert.Equal(t, int64(1024), limit)
		assert.Equal(t, CodeFormSize, f.Code())
	})

	t.Run("partial", func(t *testing.T) {
		f := &Failure{kind: Partial, size: 512}
		_, tooBig := f.IsTooBig(limits)
		assert.False(t, tooBig)
		n, ok := f.IsPartial()
		assert.True(t, ok)
		assert.Equal(t, int64(512), n)
	})

	t.Run("no file", func(t *testing.T) {
		f := &Failure{kind: NoFile}
		assert.True(t, f.NotUploaded())
		assert.Equal(t, CodeNoFile, f.Code())
	})
}

func TestFile_MoveTo(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload-1")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0644))

	f := &File{fieldName: "doc", tmpPath: src}

	t.Run("success", func(t *testing.T) {
		dst := filepath.Join(dir, "kept.txt")
		require.NoError(t, f.MoveTo(dst))

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
		_, err = os.Stat(src)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("source gone", func(t *testing.T) {
		err := f.MoveTo(filepath.Join(dir, "again.txt"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrServerFault)

		var fault *ServerFault
		require.ErrorAs(t, err, &fault)
		assert.Equal(t, ReasonMoveFailed, fault.Reason)
		assert.Equal(t, "doc", fault.FieldName)
	})
}
