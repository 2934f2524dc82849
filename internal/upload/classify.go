package upload

// Verifier answers whether a temporary path was written by the host upload
// channel for the current request.
type Verifier interface {
	IsUploaded(path string) bool
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(path string) bool

func (f VerifierFunc) IsUploaded(path string) bool { return f(path) }

// Classify turns the attributes of one field into an Outcome, or returns a
// *ServerFault or *SecurityFault. The authenticity check runs only for
// trusted descriptors and only on the success path.
func Classify(fieldName string, a Attributes, trusted bool, v Verifier) (Outcome, error) {
	switch a.Error {
	case CodeOK:
		if trusted && (v == nil || !v.IsUploaded(a.TmpName)) {
			return nil, &SecurityFault{FieldName: fieldName, Reason: ReasonNotUploaded, Code: a.Error}
		}
		return &File{
			fieldName:      fieldName,
			clientFilename: a.Name,
			contentType:    a.Type,
			size:           a.Size,
			tmpPath:        a.TmpName,
		}, nil

	case CodeIniSize:
		return &Failure{fieldName: fieldName, kind: OversizeServer, size: a.Size}, nil
	case CodeFormSize:
		return &Failure{fieldName: fieldName, kind: OversizeForm, size: a.Size}, nil
	case CodePartial:
		return &Failure{fieldName: fieldName, kind: Partial, size: a.Size}, nil
	case CodeNoFile:
		return &Failure{fieldName: fieldName, kind: NoFile, size: a.Size}, nil

	case CodeNoTmpDir:
		return nil, &ServerFault{FieldName: fieldName, Reason: ReasonNoTmpDir, Code: a.Error}
	case CodeCantWrite:
		return nil, &ServerFault{FieldName: fieldName, Reason: ReasonCantWrite, Code: a.Error}
	case CodeExtension:
		return nil, &ServerFault{FieldName: fieldName, Reason: ReasonExtension, Code: a.Error}

	default:
		return nil, &SecurityFault{FieldName: fieldName, Reason: ReasonUnknownCode, Code: a.Error}
	}
}
