package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"testing"
)

func TestKindOf(t *testing.T) {
	_, numErr := strconv.Atoi("x")
	_, pathErr := os.Open("/definitely/not/here")
	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("x"), KindUnknown},
		{"config", &ConfigError{Err: ErrConfigURLEmpty}, KindConfig},
		{"process", &ProcessError{Name: "Mihomo", Err: ErrCoreNotFound}, KindProcess},
		{"download", &DownloadError{URL: "u", Err: ErrSizeMismatch}, KindDownload},
		{"platform", &PlatformError{Command: "pidof", Err: errors.New("x")}, KindPlatform},
		{"parse int", numErr, KindParseInt},
		{"io", pathErr, KindIO},
		{"json", jsonErr, KindSerialization},
		{"http", &url.Error{Op: "Get", URL: "u", Err: errors.New("x")}, KindHTTP},
		{"invalid dir", &ConfigError{Path: "/x", Err: ErrInvalidDir}, KindConfig},
		{"utf8", fmt.Errorf("read sub.yaml: %w", ErrInvalidUTF8), KindUTF8},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("%s: KindOf() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOutermostKindWins(t *testing.T) {
	_, numErr := strconv.Atoi("x")
	err := fmt.Errorf("start: %w", &ProcessError{Name: "Mihomo", Err: numErr})

	if !IsKind(err, KindProcess) {
		t.Fatalf("KindOf() = %v, want Process", KindOf(err))
	}
	if !errors.Is(&ConfigError{Err: ErrInvalidHost}, ErrInvalidHost) {
		t.Fatal("ConfigError does not unwrap")
	}
}

func TestErrorMessages(t *testing.T) {
	err := &ConfigError{Path: "/x/crash_config.json", Err: errors.New("parse: bad")}
	if got := err.Error(); got != "config '/x/crash_config.json': parse: bad" {
		t.Fatalf("Error() = %q", got)
	}
	if got := (&DownloadError{Err: ErrUnsupportedTarget}).Error(); got != "download: unsupported core on target" {
		t.Fatalf("Error() = %q", got)
	}
}
