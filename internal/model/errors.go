package model

import "fmt"

// WorkspaceError means the per-job scratch directory could not be
// created or removed. Fatal to the job.
type WorkspaceError struct {
	Op   string // "acquire" or "release"
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// FetchError means every strategy of the clone fallback chain failed.
// Err joins the per-strategy failures, each of which carries the failing
// command and its combined output.
type FetchError struct {
	RepoURL string
	Ref     string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("fetching %s: %v", e.RepoURL, e.Err)
	}
	return fmt.Sprintf("fetching %s at %s: %v", e.RepoURL, e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClassificationError means the raw scanner output was not well-formed
// and no findings could be extracted. The job fails with this message;
// it is never silently treated as zero findings on a COMPLETED job.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classifying scanner output: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// NotificationParseError marks a notification payload that is not a job
// id. The dispatcher logs it and skips that single notification.
type NotificationParseError struct {
	Payload string
	Err     error
}

func (e *NotificationParseError) Error() string {
	return fmt.Sprintf("notification payload %q is not a job id: %v", e.Payload, e.Err)
}

func (e *NotificationParseError) Unwrap() error { return e.Err }
