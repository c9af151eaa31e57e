package errno

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ConfigError means required storage or encoder configuration is missing. Not retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// ValidationError rejects input before any work is performed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

// EncoderError carries the encoder's exit status and captured stderr.
type EncoderError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EncoderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "encoder %s failed: exit code %d", e.Op, e.ExitCode)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "\nstderr: %s", s)
	}
	return b.String()
}

func (e *EncoderError) Unwrap() error { return e.Err }

// StorageError is a failed object-store call. Body is the remote response text, verbatim.
type StorageError struct {
	Op         string
	Key        string
	StatusCode int
	Body       string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s %s failed: status=%d, body=%s", e.Op, e.Key, e.StatusCode, e.Body)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MissingSegmentsError lists playlist entries that were not uploaded.
// Only raised when strict segment reconciliation is enabled.
type MissingSegmentsError struct {
	PlaylistKey string
	Missing     []string
}

func (e *MissingSegmentsError) Error() string {
	return fmt.Sprintf("playlist %s references %d segment(s) that were not uploaded: %s",
		e.PlaylistKey, len(e.Missing), strings.Join(e.Missing, ","))
}

// Classify maps an error onto the business code and HTTP status used by the REST envelope.
func Classify(err error) (*Errno, int) {
	if err == nil {
		return OK, http.StatusOK
	}
	var (
		cfgErr     *ConfigError
		valErr     *ValidationError
		encErr     *EncoderError
		storeErr   *StorageError
		segErr     *MissingSegmentsError
		errnoValue *Errno
	)
	switch {
	case errors.As(err, &valErr):
		return &Errno{Code: validationCode(valErr), Message: valErr.Error()}, http.StatusBadRequest
	case errors.As(err, &cfgErr):
		return &Errno{Code: ErrStorageConfig.Code, Message: cfgErr.Error()}, http.StatusInternalServerError
	case errors.As(err, &encErr):
		return &Errno{Code: ErrEncoderFailed.Code, Message: encErr.Error()}, http.StatusUnprocessableEntity
	case errors.As(err, &storeErr):
		return &Errno{Code: ErrStorageRequest.Code, Message: storeErr.Error()}, http.StatusBadGateway
	case errors.As(err, &segErr):
		return &Errno{Code: ErrSegmentsIncomplete.Code, Message: segErr.Error()}, http.StatusBadGateway
	case errors.As(err, &errnoValue):
		if errnoValue.Code >= 400 && errnoValue.Code < 600 {
			return errnoValue, errnoValue.Code
		}
		return errnoValue, http.StatusBadRequest
	default:
		return &Errno{Code: ErrInternalServer.Code, Message: err.Error()}, http.StatusInternalServerError
	}
}

// validationCode picks the business code for a rejected request.
func validationCode(e *ValidationError) int {
	switch {
	case e.Field == "file" && e.Reason == "is empty":
		return ErrEmptyFile.Code
	case e.Field == "kind":
		return ErrUnsupportedKind.Code
	case e.Reason == "is required":
		return ErrMissingParam.Code
	default:
		return ErrInvalidParam.Code
	}
}
