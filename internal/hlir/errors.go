package hlir

import (
	"errors"
	"fmt"
)

// Error codes for HLIR loading and validation. E0xx are file and document
// problems reported before any IR is built; E2xx are referential-integrity
// violations inside an otherwise well-formed document.
const (
	ErrCodeGeneric         = "E001" // unclassified load error
	ErrCodeRead            = "E002" // file read failed
	ErrCodeBadDocument     = "E003" // JSON decode failed
	ErrCodeSchema          = "E004" // CUE schema violation
	ErrCodeNotFound        = "E005" // input path not found
	ErrCodeDuplicateName   = "E201" // duplicate header/field/action/table name
	ErrCodeUnknownRef      = "E202" // reference to undeclared field/action/node
	ErrCodeUnknownPrim     = "E203" // action calls a primitive not in the table
	ErrCodePrimArity       = "E204" // call has fewer operands than its access spec needs
	ErrCodeBadPrimitiveDoc = "E205" // malformed supplementary primitive doc
	ErrCodeBadMatch        = "E206" // match type and key reference disagree
)

// LoadError is a structured error raised while loading or validating an
// HLIR snapshot or a primitive document. It is a configuration-class error:
// it is always reported before any dependency analysis begins.
type LoadError struct {
	Code    string
	Message string
	Path    string // source file, if known
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is (or wraps) a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
