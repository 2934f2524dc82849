package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for a position outside the collection.
	ErrOutOfRange = errors.New("upload: position out of range")

	// ErrUnsupported is returned by every mutating collection operation.
	ErrUnsupported = errors.New("upload: collection is read-only")

	// ErrServerFault matches every *ServerFault via errors.Is.
	ErrServerFault = errors.New("upload: server problem")

	// ErrSecurityFault matches every *SecurityFault via errors.Is.
	ErrSecurityFault = errors.New("upload: security concern")

	// ErrStructuralMismatch matches every *StructuralMismatchError via errors.Is.
	ErrStructuralMismatch = errors.New("upload: descriptor attributes disagree in shape")

	// ErrNoMessage is returned when changing the message of a kind that has none.
	ErrNoMessage = errors.New("upload: kind does not have a message")

	// ErrDisabled is returned by the channel when uploads are switched off.
	ErrDisabled = errors.New("upload: file uploads are disabled")
)

// ServerReason says which part of the host infrastructure failed.
type ServerReason int

const (
	ReasonNoTmpDir ServerReason = iota + 1
	ReasonCantWrite
	ReasonExtension
	ReasonMoveFailed
)

func (r ServerReason) String() string {
	switch r {
	case ReasonNoTmpDir:
		return "No temporary folder in which to hold the upload"
	case ReasonCantWrite:
		return "Failed to write upload to temporary location"
	case ReasonExtension:
		return "An extension blocked the upload"
	case ReasonMoveFailed:
		return "Cannot move file"
	default:
		return "There was a problem with your upload"
	}
}

// ServerFault reports a host misconfiguration or I/O failure. One fault
// aborts the whole batch.
type ServerFault struct {
	FieldName string
	Reason    ServerReason
	Code      ErrorCode
	Err       error
}

func (e *ServerFault) Error() string {
	msg := e.Reason.String()
	if e.FieldName != "" {
		msg = fmt.Sprintf("%s: %s", e.FieldName, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ServerFault) Is(target error) bool { return target == ErrServerFault }

func (e *ServerFault) Unwrap() error { return e.Err }

// SecurityReason says why an upload looks suspicious.
type SecurityReason int

const (
	ReasonNotUploaded SecurityReason = iota + 1
	ReasonUnknownCode
)

func (r SecurityReason) String() string {
	switch r {
	case ReasonNotUploaded:
		return "not_uploaded"
	case ReasonUnknownCode:
		return "unknown_code"
	default:
		return "unknown"
	}
}

// SecurityFault reports an upload that appears to bypass the host's upload
// safeguards. Callers should log session and origin details alongside it.
type SecurityFault struct {
	FieldName string
	Reason    SecurityReason
	Code      ErrorCode
}

func (e *SecurityFault) Error() string {
	var msg string
	switch e.Reason {
	case ReasonNotUploaded:
		msg = "The file was not uploaded through POST"
	case ReasonUnknownCode:
		msg = fmt.Sprintf("The file had an unknown upload error code: %d", int(e.Code))
	default:
		msg = "There was a problem with your upload"
	}
	if e.FieldName != "" {
		return fmt.Sprintf("%s: %s", e.FieldName, msg)
	}
	return msg
}

func (e *SecurityFault) Is(target error) bool { return target == ErrSecurityFault }

// StructuralMismatchError reports parallel attribute trees that disagree in
// shape at FieldName.
type StructuralMismatchError struct {
	FieldName string
	Attribute string
	Key       string
}

func (e *StructuralMismatchError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: attribute %q has no key %q", e.FieldName, e.Attribute, e.Key)
	}
	return fmt.Sprintf("%s: attribute %q does not match the shape of %q", e.FieldName, e.Attribute, AttrName)
}

func (e *StructuralMismatchError) Is(target error) bool { return target == ErrStructuralMismatch }
