package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
)

// Common error types
var (
	// Config errors
	ErrConfigURLEmpty     = errors.New("configuration url is empty")
	ErrConfigSourceAbsent = errors.New("configuration source not found")
	ErrInvalidHost        = errors.New("invalid web host")
	ErrInvalidDir         = errors.New("install directory is not valid UTF-8")
	ErrUnknownVariant     = errors.New("unknown variant")

	// Process errors
	ErrCoreNotFound    = errors.New("core executable not found")
	ErrProcessNotFound = errors.New("process not found")
	ErrStopForced      = errors.New("core was stopped with --force")
	ErrVersionParse    = errors.New("core version not found in output")

	// Download errors
	ErrSizeMismatch       = errors.New("file size mismatch")
	ErrUnsupportedTarget  = errors.New("unsupported core on target")
	ErrMirrorUnsupported  = errors.New("mirror cannot serve resource")
	ErrArtifactMissing    = errors.New("artifact missing after install")
	ErrUnsupportedArchive = errors.New("unsupported archive")

	// Text errors
	ErrInvalidUTF8 = errors.New("text is not valid UTF-8")
)

// Kind classifies an error the way commands report it.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindProcess
	KindDownload
	KindPlatform
	KindIO
	KindSerialization
	KindHTTP
	KindParseInt
	KindUTF8
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "Config"
	case KindProcess:
		return "Process"
	case KindDownload:
		return "Download"
	case KindPlatform:
		return "Platform"
	case KindIO:
		return "Io"
	case KindSerialization:
		return "Serialization"
	case KindHTTP:
		return "Http"
	case KindParseInt:
		return "ParseInt"
	case KindUTF8:
		return "Utf8"
	default:
		return "Unknown"
	}
}

// KindOf returns the kind of the outermost classified error in err's chain.
// Lower-level stdlib errors map to the wrapped kinds.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}

	var (
		numErr    *strconv.NumError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		urlErr    *url.Error
		pathErr   *fs.PathError
	)
	switch {
	case errors.As(err, &numErr):
		return KindParseInt
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return KindSerialization
	case errors.As(err, &urlErr):
		return KindHTTP
	case errors.As(err, &pathErr):
		return KindIO
	case errors.Is(err, ErrInvalidUTF8):
		return KindUTF8
	}
	return KindUnknown
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ConfigError represents a configuration-related error
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config '%s': %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
func (e *ConfigError) Kind() Kind    { return KindConfig }

// ProcessError represents a core process error
type ProcessError struct {
	Name string
	Err  error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process %s: %v", e.Name, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }
func (e *ProcessError) Kind() Kind    { return KindProcess }

// DownloadError represents a failed fetch or install of a remote artifact
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("download: %v", e.Err)
	}
	return fmt.Sprintf("download '%s': %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
func (e *DownloadError) Kind() Kind    { return KindDownload }

// PlatformError represents an OS command that could not be run or failed
type PlatformError struct {
	Command string
	Err     error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("command '%s': %v", e.Command, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }
func (e *PlatformError) Kind() Kind    { return KindPlatform }
