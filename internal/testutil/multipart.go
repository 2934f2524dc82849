package testutil

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

// FormPart is one part of a multipart test body.
type FormPart struct {
	Field    string
	Filename string
	Content  string
	Value    bool
}

// FileField is a file part.
func FileField(field, filename, content string) FormPart {
	return FormPart{Field: field, Filename: filename, Content: content}
}

// ValueField is a plain form value.
func ValueField(field, value string) FormPart {
	return FormPart{Field: field, Content: value, Value: true}
}

// MultipartBody encodes parts and returns the body with its content type.
func MultipartBody(t *testing.T, parts ...FormPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.Value {
			if err := w.WriteField(p.Field, p.Content); err != nil {
				t.Fatalf("failed to write field %s: %v", p.Field, err)
			}
			continue
		}
		fw, err := w.CreateFormFile(p.Field, p.Filename)
		if err != nil {
			t.Fatalf("failed to create part %s: %v", p.Field, err)
		}
		if _, err := fw.Write([]byte(p.Content)); err != nil {
			t.Fatalf("failed to write part %s: %v", p.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// MultipartRequest builds a POST request to target carrying parts.
func MultipartRequest(t *testing.T, target string, parts ...FormPart) *http.Request {
	t.Helper()
	body, contentType := MultipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	return req
}
