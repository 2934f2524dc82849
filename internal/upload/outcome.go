package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Outcome is one classified upload: a *File or a *Failure.
type Outcome interface {
	// FieldName is the form field name, bracket-qualified for nested fields.
	// Base keys containing "." or " " come back with "_", and "foo[]" comes
	// back as "foo[0]", "foo[1]", ...
	FieldName() string
	outcome()
}

// File is a successfully received upload.
type File struct {
	fieldName      string
	clientFilename string
	contentType    string
	size           int64
	tmpPath        string
}

func (f *File) FieldName() string { return f.fieldName }

// ClientFilename is the file name the client sent. Use it for display only.
func (f *File) ClientFilename() string { return f.clientFilename }

// Type is the content type declared by the client.
func (f *File) Type() string { return f.contentType }

// Size is the number of bytes received.
func (f *File) Size() int64 { return f.size }

// ServerFile is the temporary path holding the upload. Move the file before
// the request ends to keep it.
func (f *File) ServerFile() string { return f.tmpPath }

// MoveTo relocates the temporary file to dst.
func (f *File) MoveTo(dst string) error {
	if err := moveFile(f.tmpPath, dst); err != nil {
		return &ServerFault{FieldName: f.fieldName, Reason: ReasonMoveFailed, Err: err}
	}
	return nil
}

func (f *File) outcome() {}

// Failure is an upload that did not arrive because of something the client
// did: sent too much, sent part of it, or sent nothing.
type Failure struct {
	fieldName string
	kind      FailureKind
	size      int64
}

func (f *Failure) FieldName() string { return f.fieldName }

// Kind returns the failure classification.
func (f *Failure) Kind() FailureKind { return f.kind }

// Code returns the host status code behind the failure.
func (f *Failure) Code() ErrorCode { return f.kind.Code() }

// Size is the size reported by the host for this field.
func (f *Failure) Size() int64 { return f.size }

// ErrorMessage describes why the upload failed.
func (f *Failure) ErrorMessage() string {
	messagesMu.RLock()
	defer messagesMu.RUnlock()
	return messages[f.kind]
}

// Limits exposes the size limits an oversize failure was measured against.
type Limits interface {
	SystemMaxUploadBytes() int64
	FormMaxUploadBytes() int64
}

// StaticLimits is a Limits with fixed values.
type StaticLimits struct {
	System int64
	Form   int64
}

func (l StaticLimits) SystemMaxUploadBytes() int64 { return l.System }
func (l StaticLimits) FormMaxUploadBytes() int64   { return l.Form }

// IsTooBig reports whether the file exceeded the server or form limit, and
// returns the limit that was exceeded.
func (f *Failure) IsTooBig(limits Limits) (int64, bool) {
	switch f.kind {
	case OversizeServer:
		return limits.SystemMaxUploadBytes(), true
	case OversizeForm:
		return limits.FormMaxUploadBytes(), true
	default:
		return 0, false
	}
}

// IsPartial reports whether the file was only partially received, and how
// many bytes arrived.
func (f *Failure) IsPartial() (int64, bool) {
	if f.kind == Partial {
		return f.size, true
	}
	return 0, false
}

// NotUploaded reports whether the field carried no file.
func (f *Failure) NotUploaded() bool { return f.kind == NoFile }

func (f *Failure) outcome() {}

var (
	messagesMu sync.RWMutex
	messages   = map[FailureKind]string{
		OversizeServer: "The file size exceeds the server-allowed limit.",
		OversizeForm:   "The file size exceeds the form-allowed upload limit.",
		Partial:        "The file was only partially uploaded.",
		NoFile:         "No file was uploaded.",
	}
)

// SetErrorMessage replaces the message reported for kind, e.g. to localize it.
func SetErrorMessage(kind FailureKind, msg string) error {
	messagesMu.Lock()
	defer messagesMu.Unlock()
	if _, ok := messages[kind]; !ok {
		return fmt.Errorf("%w: %v", ErrNoMessage, kind)
	}
	messages[kind] = msg
	return nil
}

// moveFile renames src to dst, copying when the rename crosses devices.
func moveFile(src, dst string) error {
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Join(renameErr, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Join(renameErr, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	in.Close()
	return os.Remove(src)
}
