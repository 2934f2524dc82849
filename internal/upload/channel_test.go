package upload

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formPart struct {
	field    string
	filename string
	content  string
	value    bool
}

func fileField(field, filename, content string) formPart {
	return formPart{field: field, filename: filename, content: content}
}

func valueField(field, value string) formPart {
	return formPart{field: field, content: value, value: true}
}

func multipartBody(t *testing.T, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.value {
			require.NoError(t, w.WriteField(p.field, p.content))
			continue
		}
		fw, err := w.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func multipartRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func testSettings(t *testing.T) Settings {
	t.Helper()
	return Settings{Enabled: true, WorkingPath: t.TempDir()}
}

func TestChannel_Success(t *testing.T) {
	ch := NewChannel(testSettings(t))
	d, err := ch.Receive(multipartRequest(t,
		valueField("title", "holiday"),
		fileField("avatar", "pic.png", "png-bytes"),
	))
	require.NoError(t, err)

	a, err := Gather(d, "avatar")
	require.NoError(t, err)
	assert.Equal(t, CodeOK, a.Error)
	assert.Equal(t, "pic.png", a.Name)
	assert.Equal(t, "application/octet-stream", a.Type)
	assert.Equal(t, int64(len("png-bytes")), a.Size)
	assert.True(t, ch.IsUploaded(a.TmpName))
	assert.False(t, ch.IsUploaded("/etc/passwd"))

	data, err := os.ReadFile(a.TmpName)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, ch.Cleanup())
	_, err = os.Stat(a.TmpName)
	assert.True(t, os.IsNotExist(err))
}

func TestChannel_FieldNames(t *testing.T) {
	ch := NewChannel(testSettings(t))
	d, err := ch.Receive(multipartRequest(t,
		fileField("files[]", "a.txt", "a"),
		fileField("files[]", "b.txt", "b"),
		fileField("user.avatar", "c.txt", "c"),
		fileField("my doc[x][y]", "d.txt", "d"),
	))
	require.NoError(t, err)
	t.Cleanup(func() { ch.Cleanup() })

	assert.Equal(t, []string{"files[0]", "files[1]", "user_avatar", "my_doc[x][y]"}, ResolveNames(d))
}

func TestChannel_AutoIndexAfterExplicitKeys(t *testing.T) {
	tests := []struct {
		name  string
		parts []formPart
		want  []string
	}{
		{
			name:  "after index zero",
			parts: []formPart{fileField("files[0]", "a.txt", "a"), fileField("files[]", "b.txt", "b")},
			want:  []string{"files[0]", "files[1]"},
		},
		{
			name:  "after a gap",
			parts: []formPart{fileField("files[5]", "a.txt", "a"), fileField("files[]", "b.txt", "b")},
			want:  []string{"files[5]", "files[6]"},
		},
		{
			name: "explicit key between automatic ones",
			parts: []formPart{
				fileField("files[]", "a.txt", "a"),
				fileField("files[3]", "b.txt", "b"),
				fileField("files[]", "c.txt", "c"),
			},
			want: []string{"files[0]", "files[3]", "files[4]"},
		},
		{
			name:  "string keys do not count",
			parts: []formPart{fileField("files[x]", "a.txt", "a"), fileField("files[07]", "b.txt", "b"), fileField("files[]", "c.txt", "c")},
			want:  []string{"files[x]", "files[07]", "files[0]"},
		},
		{
			name:  "levels are independent",
			parts: []formPart{fileField("docs[2][]", "a.txt", "a"), fileField("docs[]", "b.txt", "b"), fileField("docs[2][]", "c.txt", "c")},
			want:  []string{"docs[2][0]", "docs[2][1]", "docs[3]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewChannel(testSettings(t))
			d, err := ch.Receive(multipartRequest(t, tt.parts...))
			require.NoError(t, err)
			t.Cleanup(func() { ch.Cleanup() })

			assert.Equal(t, tt.want, ResolveNames(d))

			// Every received file stays reachable.
			coll, err := New(d, WithVerifier(ch))
			require.NoError(t, err)
			assert.Equal(t, len(tt.parts), coll.Len())
		})
	}
}

func TestChannel_Statuses(t *testing.T) {
	tests := []struct {
		name     string
		settings func(Settings) Settings
		parts    []formPart
		field    string
		want     ErrorCode
	}{
		{
			name:  "empty filename",
			parts: []formPart{fileField("doc", "", "")},
			field: "doc",
			want:  CodeNoFile,
		},
		{
			name:  "form limit",
			parts: []formPart{valueField("MAX_FILE_SIZE", "5"), fileField("doc", "big.txt", "0123456789")},
			field: "doc",
			want:  CodeFormSize,
		},
		{
			name:     "system limit",
			settings: func(s Settings) Settings { s.SystemMaxBytes = 4; return s },
			parts:    []formPart{fileField("doc", "big.txt", "0123456789")},
			field:    "doc",
			want:     CodeIniSize,
		},
		{
			name:     "system limit wins over a larger form limit",
			settings: func(s Settings) Settings { s.SystemMaxBytes = 4; return s },
			parts:    []formPart{valueField("MAX_FILE_SIZE", "100"), fileField("doc", "big.txt", "0123456789")},
			field:    "doc",
			want:     CodeIniSize,
		},
		{
			name:     "blocked extension",
			settings: func(s Settings) Settings { s.BlockedExtensions = []string{"exe"}; return s },
			parts:    []formPart{fileField("doc", "setup.EXE", "MZ")},
			field:    "doc",
			want:     CodeExtension,
		},
		{
			name: "missing working directory",
			settings: func(s Settings) Settings {
				s.WorkingPath = filepath.Join(s.WorkingPath, "missing")
				return s
			},
			parts: []formPart{fileField("doc", "a.txt", "a")},
			field: "doc",
			want:  CodeNoTmpDir,
		},
		{
			name:  "exactly at the form limit",
			parts: []formPart{valueField("MAX_FILE_SIZE", "10"), fileField("doc", "ok.txt", "0123456789")},
			field: "doc",
			want:  CodeOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(t)
			if tt.settings != nil {
				s = tt.settings(s)
			}
			ch := NewChannel(s)
			t.Cleanup(func() { ch.Cleanup() })

			d, err := ch.Receive(multipartRequest(t, tt.parts...))
			require.NoError(t, err)

			a, err := Gather(d, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Error)
			if tt.want != CodeOK {
				assert.Empty(t, a.TmpName)
			}
		})
	}
}

func TestChannel_Limits(t *testing.T) {
	ch := NewChannel(Settings{Enabled: true, WorkingPath: t.TempDir(), SystemMaxBytes: 100})
	_, err := ch.Receive(multipartRequest(t, valueField("MAX_FILE_SIZE", "50")))
	require.NoError(t, err)

	assert.Equal(t, StaticLimits{System: 100, Form: 50}, ch.Limits())
}

func TestChannel_TruncatedBody(t *testing.T) {
	body, contentType := multipartBody(t, fileField("doc", "a.txt", "0123456789abcdef"))
	cut := bytes.Index(body.Bytes(), []byte("abcdef"))
	require.Positive(t, cut)

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body.Bytes()[:cut]))
	req.Header.Set("Content-Type", contentType)

	ch := NewChannel(testSettings(t))
	d, err := ch.Receive(req)
	require.NoError(t, err)

	a, err := Gather(d, "doc")
	require.NoError(t, err)
	assert.Equal(t, CodePartial, a.Error)
	assert.Positive(t, a.Size)
}

func TestChannel_MaxFileUploads(t *testing.T) {
	s := testSettings(t)
	s.MaxFileUploads = 1
	ch := NewChannel(s)
	t.Cleanup(func() { ch.Cleanup() })

	d, err := ch.Receive(multipartRequest(t,
		fileField("first", "a.txt", "a"),
		fileField("second", "b.txt", "b"),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, ResolveNames(d))
}

func TestChannel_Disabled(t *testing.T) {
	ch := NewChannel(Settings{Enabled: false})
	_, err := ch.Receive(multipartRequest(t, fileField("doc", "a.txt", "a")))
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestChannel_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err := NewChannel(testSettings(t)).Receive(req)
	assert.Error(t, err)
}

func TestFromRequest(t *testing.T) {
	t.Run("trusted success", func(t *testing.T) {
		c, ch, err := FromRequest(multipartRequest(t,
			fileField("docs[]", "a.txt", "aaa"),
			fileField("docs[]", "", ""),
		), testSettings(t))
		require.NoError(t, err)
		t.Cleanup(func() { ch.Cleanup() })
		require.Equal(t, 2, c.Len())

		first, _ := c.At(0)
		f, ok := first.(*File)
		require.True(t, ok)
		assert.Equal(t, "docs[0]", f.FieldName())
		assert.Equal(t, int64(3), f.Size())

		second, _ := c.At(1)
		failure, ok := second.(*Failure)
		require.True(t, ok)
		assert.True(t, failure.NotUploaded())
		assert.Equal(t, "docs[1]", failure.FieldName())
	})

	t.Run("server fault removes received files", func(t *testing.T) {
		s := testSettings(t)
		s.BlockedExtensions = []string{".sh"}

		c, ch, err := FromRequest(multipartRequest(t,
			fileField("ok", "a.txt", "a"),
			fileField("bad", "run.sh", "#!/bin/sh"),
		), s)
		assert.Nil(t, c)
		assert.Nil(t, ch)
		assert.ErrorIs(t, err, ErrServerFault)

		entries, err := os.ReadDir(s.WorkingPath)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
