package upload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	always := VerifierFunc(func(string) bool { return true })

	tests := []struct {
		name     string
		code     ErrorCode
		trusted  bool
		wantKind FailureKind
		wantFile bool
		wantErr  error
	}{
		{name: "ok untrusted", code: CodeOK, wantFile: true},
		{name: "ok trusted verified", code: CodeOK, trusted: true, wantFile: true},
		{name: "ini size", code: CodeIniSize, wantKind: OversizeServer},
		{name: "form size", code: CodeFormSize, wantKind: OversizeForm},
		{name: "partial", code: CodePartial, wantKind: Partial},
		{name: "no file", code: CodeNoFile, wantKind: NoFile},
		{name: "no tmp dir", code: CodeNoTmpDir, wantErr: ErrServerFault},
		{name: "cant write", code: CodeCantWrite, wantErr: ErrServerFault},
		{name: "extension", code: CodeExtension, wantErr: ErrServerFault},
		{name: "unassigned 5", code: 5, wantErr: ErrSecurityFault},
		{name: "negative", code: -1, wantErr: ErrSecurityFault},
		{name: "large", code: 99, wantErr: ErrSecurityFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Attributes{Name: "a.txt", Type: "text/plain", Size: 42, TmpName: "/tmp/a", Error: tt.code}
			o, err := Classify("field", a, tt.trusted, always)

			if tt.wantErr != nil {
				assert.Nil(t, o)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			if tt.wantFile {
				assert.IsType(t, &File{}, o)
				return
			}
			f, ok := o.(*Failure)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, f.Kind())
			assert.Equal(t, tt.code, f.Code())
			assert.Equal(t, "field", f.FieldName())
		})
	}
}

func TestClassify_Faults(t *testing.T) {
	t.Run("unknown code carries the code", func(t *testing.T) {
		_, err := Classify("f", Attributes{Error: 42}, false, nil)
		var fault *SecurityFault
		require.ErrorAs(t, err, &fault)
		assert.Equal(t, ReasonUnknownCode, fault.Reason)
		assert.Equal(t, ErrorCode(42), fault.Code)
		assert.Contains(t, err.Error(), "42")
		assert.False(t, errors.Is(err, ErrServerFault))
	})

	t.Run("server fault reasons", func(t *testing.T) {
		reasons := map[ErrorCode]ServerReason{
			CodeNoTmpDir:  ReasonNoTmpDir,
			CodeCantWrite: ReasonCantWrite,
			CodeExtension: ReasonExtension,
		}
		for code, reason := range reasons {
			_, err := Classify("f", Attributes{Error: code}, false, nil)
			var fault *ServerFault
			require.ErrorAs(t, err, &fault)
			assert.Equal(t, reason, fault.Reason)
			assert.Contains(t, err.Error(), reason.String())
		}
	})

	t.Run("trusted without verifier", func(t *testing.T) {
		_, err := Classify("f", Attributes{TmpName: "/tmp/x"}, true, nil)
		assert.ErrorIs(t, err, ErrSecurityFault)
	})

	t.Run("authenticity only checked on success", func(t *testing.T) {
		never := VerifierFunc(func(string) bool { return false })
		o, err := Classify("f", Attributes{Error: CodePartial, Size: 9}, true, never)
		require.NoError(t, err)
		received, ok := o.(*Failure).IsPartial()
		assert.True(t, ok)
		assert.Equal(t, int64(9), received)
	})
}
