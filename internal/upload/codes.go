package upload

import "fmt"

// ErrorCode is the per-file status the host records while receiving an upload.
type ErrorCode int

// Host upload status codes. 5 is unassigned.
const (
	CodeOK        ErrorCode = 0
	CodeIniSize   ErrorCode = 1
	CodeFormSize  ErrorCode = 2
	CodePartial   ErrorCode = 3
	CodeNoFile    ErrorCode = 4
	CodeNoTmpDir  ErrorCode = 6
	CodeCantWrite ErrorCode = 7
	CodeExtension ErrorCode = 8
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeIniSize:
		return "ini_size"
	case CodeFormSize:
		return "form_size"
	case CodePartial:
		return "partial"
	case CodeNoFile:
		return "no_file"
	case CodeNoTmpDir:
		return "no_tmp_dir"
	case CodeCantWrite:
		return "cant_write"
	case CodeExtension:
		return "extension"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// FailureKind classifies a client-attributable upload problem.
type FailureKind int

const (
	// OversizeServer means the file exceeded the server-wide size limit.
	OversizeServer FailureKind = iota + 1
	// OversizeForm means the file exceeded the MAX_FILE_SIZE form limit.
	OversizeForm
	// Partial means the file was only partially received.
	Partial
	// NoFile means the form field carried no file.
	NoFile
)

func (k FailureKind) String() string {
	switch k {
	case OversizeServer:
		return "oversize_server"
	case OversizeForm:
		return "oversize_form"
	case Partial:
		return "partial"
	case NoFile:
		return "no_file"
	default:
		return "unknown"
	}
}

// Code returns the host status code that produces this kind.
func (k FailureKind) Code() ErrorCode {
	switch k {
	case OversizeServer:
		return CodeIniSize
	case OversizeForm:
		return CodeFormSize
	case Partial:
		return CodePartial
	case NoFile:
		return CodeNoFile
	default:
		return ErrorCode(-1)
	}
}
