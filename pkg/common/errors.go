package common

import (
	"errors"
	"fmt"
)

// VersionNotFoundError is returned when the requested id is absent from the
// top-level version manifest.
type VersionNotFoundError struct {
	ID string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %s not found", e.ID)
}

// NetworkError covers transport failures and non-success HTTP statuses.
// Status is zero when the request never reached the server.
type NetworkError struct {
	URL    string
	Status int
	Cause  error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("request %s failed: %v", e.URL, e.Cause)
	}

	return fmt.Sprintf("request %s failed with status %d", e.URL, e.Status)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// ParseError covers malformed JSON documents.
type ParseError struct {
	Context string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s: %v", e.Context, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// MalformedChainError reports a cyclic or unterminated inheritance chain.
// ID is the version at which the chain was cut off.
type MalformedChainError struct {
	ID    string
	Chain []string
}

func (e *MalformedChainError) Error() string {
	return fmt.Sprintf("malformed inheritance chain at %s (chain: %v)", e.ID, e.Chain)
}

// HashMismatchError reports a fully received payload whose digest differs
// from the published one.
type HashMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// TruncatedTransferError reports a stream that ended before the declared
// size was received.
type TruncatedTransferError struct {
	Path     string
	Expected int64
	Actual   int64
}

func (e *TruncatedTransferError) Error() string {
	return fmt.Sprintf("truncated transfer for %s: expected %d bytes, got %d", e.Path, e.Expected, e.Actual)
}

// MalformedArchiveError reports a native archive that cannot be extracted,
// including entries that would escape the destination directory.
type MalformedArchiveError struct {
	Path   string
	Entry  string
	Reason string
}

func (e *MalformedArchiveError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("malformed archive %s: entry %q: %s", e.Path, e.Entry, e.Reason)
	}

	return fmt.Sprintf("malformed archive %s: %s", e.Path, e.Reason)
}

// TaskFailure is one permanently failed download task.
type TaskFailure struct {
	URL  string
	Path string
	Err  error
}

func (f *TaskFailure) Error() string {
	return fmt.Sprintf("download %s -> %s: %v", f.URL, f.Path, f.Err)
}

func (f *TaskFailure) Unwrap() error {
	return f.Err
}

// DownloadErrors aggregates every task that permanently failed in one run.
// The run itself is not aborted by individual failures; callers inspect
// Failures for partial-success handling.
type DownloadErrors struct {
	Failures []*TaskFailure
}

func (e *DownloadErrors) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("1 download failed: %v", e.Failures[0])
	}

	return fmt.Sprintf("%d downloads failed, first: %v", len(e.Failures), e.Failures[0])
}

// Retryable reports whether an error is worth another attempt. Only
// network-layer and integrity failures are; malformed URLs and filesystem
// errors are fatal for their task immediately.
func Retryable(err error) bool {
	var (
		netErr   *NetworkError
		hashErr  *HashMismatchError
		truncErr *TruncatedTransferError
	)

	return errors.As(err, &netErr) || errors.As(err, &hashErr) || errors.As(err, &truncErr)
}
