package entity

// Category groups download tasks for progress accounting.
type Category string

const (
	CategoryClient  Category = "client"
	CategoryLibrary Category = "library"
	CategoryAsset   Category = "asset"
	CategoryNative  Category = "native"
)

// DownloadTask is one planned transfer: source URL, final destination path
// and the integrity expectations the payload must satisfy.
type DownloadTask struct {
	Name     string
	URL      string
	Dest     string
	Category Category

	// SHA1 is the expected content digest, hex encoded. Empty means no
	// published hash: verification is skipped, existence checks are not.
	SHA1 string

	// Size is the expected byte count. Zero or negative means unknown.
	Size int64

	// ExtractExclude carries the extraction-exclusion prefixes of the
	// owning library for native-classified archives.
	ExtractExclude []string
}

// OutcomeState is the terminal state of a download task.
type OutcomeState string

const (
	// OutcomeSucceeded means the payload was transferred and verified.
	OutcomeSucceeded OutcomeState = "succeeded"
	// OutcomeSkipped means the destination already held verified content.
	OutcomeSkipped OutcomeState = "skipped"
	// OutcomeFailed means the retry budget was exhausted or the task hit a
	// non-retryable error.
	OutcomeFailed OutcomeState = "failed"
)

// DownloadOutcome records how one task ended. Err is set only for
// OutcomeFailed.
type DownloadOutcome struct {
	Task  *DownloadTask
	State OutcomeState
	Err   error
}

// ProgressEvent reports per-category completion counts. Current is
// monotonically non-decreasing within a category for one run and never
// exceeds Total.
type ProgressEvent struct {
	Category Category
	Current  int
	Total    int
	Name     string
}
