package rig

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorCode is a stable numeric tag for operator triage.
type ErrorCode int

const (
	CodeCalibrationFailure ErrorCode = 1001
	CodeEmptyRegion        ErrorCode = 1002
	CodeGroundPenetration  ErrorCode = 1003
	CodePoseValidation     ErrorCode = 1004
	CodeAssetLoad          ErrorCode = 1005
)

func (c ErrorCode) String() string {
	switch c {
	case CodeCalibrationFailure:
		return "calibration-failure"
	case CodeEmptyRegion:
		return "empty-region"
	case CodeGroundPenetration:
		return "ground-penetration"
	case CodePoseValidation:
		return "pose-validation"
	case CodeAssetLoad:
		return "asset-load"
	}
	return fmt.Sprintf("code-%d", int(c))
}

// Error is a pipeline failure with a stable code.
type Error struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Code, int(e.Code), e.Msg, e.Err)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, int(e.Code), e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newErrorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, msg string) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf extracts the error code, or 0 for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// GroundPenetrationError reports a knee keypoint below the computed floor.
// KneeY feeds the retry hint that caps the floor search.
type GroundPenetrationError struct {
	KneeY float32
	Floor float32
}

func (e *GroundPenetrationError) Error() string {
	return fmt.Sprintf("knee at %.3f below floor %.3f", e.KneeY, e.Floor)
}

// Diagnostic is the record emitted on terminal failure.
type Diagnostic struct {
	ID      string
	Time    time.Time
	Input   string
	Code    ErrorCode
	Message string
}

func NewDiagnostic(input string, err error) Diagnostic {
	return Diagnostic{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Input:   input,
		Code:    CodeOf(err),
		Message: err.Error(),
	}
}

func (d Diagnostic) Log(logger *zap.Logger) {
	logger.Error("pipeline failed",
		zap.String("id", d.ID),
		zap.Time("time", d.Time),
		zap.String("input", d.Input),
		zap.Int("code", int(d.Code)),
		zap.String("message", d.Message),
	)
}
