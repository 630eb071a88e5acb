package config

import (
	"fmt"
	"strings"

	pkgerrors "crash/pkg/errors"
)

const (
	assetsOwner = "ahaoboy"
	assetsRepo  = "crash-assets"
)

// ResourceKind distinguishes release assets from files in a repository tree.
type ResourceKind int

const (
	ResourceRelease ResourceKind = iota
	ResourceFile
)

// Resource addresses a GitHub-hosted artifact. Ref is the release tag for
// releases and the branch or commit for files; Name is the asset name or the
// path inside the repository.
type Resource struct {
	Kind  ResourceKind
	Owner string
	Repo  string
	Ref   string
	Name  string
}

func (r Resource) githubPath() string {
	if r.Kind == ResourceRelease {
		if r.Ref == "latest" {
			return fmt.Sprintf("%s/%s/releases/latest/download/%s", r.Owner, r.Repo, r.Name)
		}
		return fmt.Sprintf("%s/%s/releases/download/%s/%s", r.Owner, r.Repo, r.Ref, r.Name)
	}
	return fmt.Sprintf("%s/%s/raw/%s/%s", r.Owner, r.Repo, r.Ref, r.Name)
}

// GithubURL is the direct github.com URL of the resource.
func (r Resource) GithubURL() string {
	return "https://github.com/" + r.githubPath()
}

// Mirror is the strategy used to rewrite GitHub URLs.
type Mirror string

const (
	MirrorGithub   Mirror = "Github"
	MirrorGhProxy  Mirror = "GhProxy"
	MirrorGhfast   Mirror = "Ghfast"
	MirrorXget     Mirror = "Xget"
	MirrorJsdelivr Mirror = "Jsdelivr"
)

// Mirrors lists every supported mirror.
var Mirrors = []Mirror{MirrorGithub, MirrorGhProxy, MirrorGhfast, MirrorXget, MirrorJsdelivr}

// ParseMirror parses a mirror name, case-insensitively.
func ParseMirror(s string) (Mirror, error) {
	for _, m := range Mirrors {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("mirror %q: %w", s, pkgerrors.ErrUnknownVariant)
}

func (m Mirror) String() string { return string(m) }

func (m Mirror) MarshalText() ([]byte, error) {
	if _, err := ParseMirror(string(m)); err != nil {
		return nil, err
	}
	return []byte(m), nil
}

func (m *Mirror) UnmarshalText(b []byte) error {
	for _, known := range Mirrors {
		if string(known) == string(b) {
			*m = known
			return nil
		}
	}
	return fmt.Errorf("mirror %q: %w", string(b), pkgerrors.ErrUnknownVariant)
}

// URL resolves r through the mirror.
func (m Mirror) URL(r Resource) (string, error) {
	switch m {
	case MirrorGithub:
		return r.GithubURL(), nil
	case MirrorGhProxy:
		return "https://gh-proxy.com/" + r.GithubURL(), nil
	case MirrorGhfast:
		return "https://ghfast.top/" + r.GithubURL(), nil
	case MirrorXget:
		return "https://xget.xi-xu.me/gh/" + r.githubPath(), nil
	case MirrorJsdelivr:
		if r.Kind != ResourceFile {
			return "", fmt.Errorf("%s release %s: %w", m, r.Name, pkgerrors.ErrMirrorUnsupported)
		}
		return fmt.Sprintf("https://cdn.jsdelivr.net/gh/%s/%s@%s/%s", r.Owner, r.Repo, r.Ref, r.Name), nil
	}
	return "", fmt.Errorf("mirror %q: %w", string(m), pkgerrors.ErrUnknownVariant)
}
