package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindVersionResolution    ErrorKind = "VersionResolutionError"
	ErrorKindLayerIO              ErrorKind = "LayerIoError"
	ErrorKindSubprocess           ErrorKind = "SubprocessError"
	ErrorKindNetwork              ErrorKind = "NetworkError"
	ErrorKindEnvironmentConflict  ErrorKind = "EnvironmentConflictError"
	ErrorKindProjectConfiguration ErrorKind = "ProjectConfigurationError"
)

type ErrorReason string

const (
	ReasonUnknownVersion          ErrorReason = "UnknownVersion"
	ReasonUnknownMinor            ErrorReason = "UnknownMinor"
	ReasonEndOfLifeVersion        ErrorReason = "EndOfLifeVersion"
	ReasonInvalidFormat           ErrorReason = "InvalidFormat"
	ReasonUnsatisfiableConstraint ErrorReason = "UnsatisfiableConstraint"
	ReasonUnavailableForStack     ErrorReason = "UnavailableForStack"
	ReasonInvalidPinFile          ErrorReason = "InvalidPinFile"
	ReasonRuntimeTxtUnsupported   ErrorReason = "RuntimeTxtUnsupported"

	ReasonInstallFailed      ErrorReason = "InstallFailed"
	ReasonVerificationFailed ErrorReason = "VerificationFailed"
	ReasonUnparsableOutput   ErrorReason = "UnparsableOutput"
	ReasonCompileFailed      ErrorReason = "CompileFailed"
	ReasonCollectstatic      ErrorReason = "CollectstaticFailed"
	ReasonFunctionCheck      ErrorReason = "FunctionCheckFailed"

	ReasonRetriesExhausted ErrorReason = "RetriesExhausted"
	ReasonNotAvailable     ErrorReason = "NotAvailable"

	ReasonNoPackageManager   ErrorReason = "NoPackageManager"
	ReasonInvalidProjectFile ErrorReason = "InvalidProjectFile"
)

// FormatProblem refines ReasonInvalidFormat.
type FormatProblem string

const (
	FormatProblemMajorOnly          FormatProblem = "MajorOnly"
	FormatProblemUnsupportedMajor   FormatProblem = "UnsupportedMajor"
	FormatProblemUnparseable        FormatProblem = "Unparseable"
	FormatProblemInvisibleCharacter FormatProblem = "InvisibleCharacter"
)

// BuildError classifies a failure for the host build protocol. Err
// carries the coded errbuilder error with the user facing message.
type BuildError struct {
	Kind   ErrorKind
	Reason ErrorReason
	Detail FormatProblem
	Err    error
}

func NewBuildError(kind ErrorKind, reason ErrorReason, err error) error {
	return &BuildError{Kind: kind, Reason: reason, Err: err}
}

func NewFormatError(problem FormatProblem, err error) error {
	return &BuildError{
		Kind:   ErrorKindVersionResolution,
		Reason: ReasonInvalidFormat,
		Detail: problem,
		Err:    err,
	}
}

func (e *BuildError) Error() string {
	label := string(e.Kind)
	if e.Reason != "" {
		label = fmt.Sprintf("%s/%s", e.Kind, e.Reason)
	}
	if e.Detail != "" {
		label = fmt.Sprintf("%s/%s", label, e.Detail)
	}
	if e.Err == nil {
		return label
	}
	return fmt.Sprintf("%s: %v", label, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

func KindOf(err error) ErrorKind {
	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Kind
	}
	return ""
}

func ReasonOf(err error) ErrorReason {
	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Reason
	}
	return ""
}

func FormatProblemOf(err error) FormatProblem {
	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Detail
	}
	return ""
}
