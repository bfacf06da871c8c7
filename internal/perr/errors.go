// Package perr defines the sentinel errors shared across audiocore
// subsystems, matched with errors.Is by callers that need to react to a
// specific failure kind rather than just log-and-continue.
package perr

import "errors"

var (
	// ErrProbe indicates a file could not be probed for tags/format info.
	ErrProbe = errors.New("probe error")
	// ErrDecode indicates a single packet failed to decode. Non-fatal.
	ErrDecode = errors.New("decode error")
	// ErrResetRequired indicates the demuxer requires track re-selection
	// and decoder recreation (e.g. mid-stream codec change on radio).
	ErrResetRequired = errors.New("reset required")
	// ErrDevice indicates the audio output device failed.
	ErrDevice = errors.New("device error")
	// ErrQueueEmpty indicates an operation was attempted on an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrMetadataStore indicates a KV store I/O failure.
	ErrMetadataStore = errors.New("metadata store error")
	// ErrNetwork indicates an HTTP/ICY stream failed to open.
	ErrNetwork = errors.New("network error")
	// ErrConfig indicates malformed or missing settings.
	ErrConfig = errors.New("config error")
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
