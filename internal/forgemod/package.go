// Package forgemod parses uploaded .forgemod packages. A package is a
// gzip-compressed tar archive holding a manifest.json plus exactly one artifact
// entry (the mod binary). Size limits and path traversal are rejected before
// any entry is read into memory, and every version string and requirement
// expression in the manifest must parse, so the ingestion coordinator never
// sees a malformed manifest.
package forgemod

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	version "github.com/hashicorp/go-version"
)

const (
	// ManifestFileName is the required manifest entry name inside the archive.
	ManifestFileName = "manifest.json"

	// DefaultMaxPackageSize bounds uploads when no limit is configured (100MB).
	DefaultMaxPackageSize = 100 << 20
)

// Manifest is the structured metadata embedded in an uploaded package
type Manifest struct {
	Slug        string  `json:"_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Website     *string `json:"website,omitempty"`
	Category    string  `json:"category"`
	Version     string  `json:"version"`
	// GameVersionReq is a requirement expression matched against the
	// game-version catalog, e.g. ">=1.20.0" or "^1.29".
	GameVersionReq string `json:"game_version"`
	// Depends and Conflicts map mod slugs to requirement expressions matched
	// against that mod's published versions.
	Depends   map[string]string `json:"depends,omitempty"`
	Conflicts map[string]string `json:"conflicts,omitempty"`
}

// Package is a decoded upload: the manifest, the opaque artifact payload, and
// the raw package bytes as received (persisted to the content store verbatim).
type Package struct {
	Manifest     Manifest
	ArtifactName string
	Artifact     []byte
	Raw          []byte
}

// ParseError reports a malformed package or manifest. Handlers map it to a
// validation failure rather than an internal error.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid package: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid package: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(reason string, err error) *ParseError {
	return &ParseError{Reason: reason, Err: err}
}

// Parse reads a .forgemod package from r, enforcing maxSize, and returns the
// decoded package. maxSize <= 0 applies DefaultMaxPackageSize.
func Parse(r io.Reader, maxSize int64) (*Package, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxPackageSize
	}

	raw, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read package: %w", err)
	}
	if int64(len(raw)) > maxSize {
		return nil, parseErr(fmt.Sprintf("package exceeds maximum size of %d bytes", maxSize), nil)
	}

	pkg, err := decode(raw, maxSize)
	if err != nil {
		return nil, err
	}
	pkg.Raw = raw

	if err := pkg.Manifest.Validate(); err != nil {
		return nil, err
	}

	return pkg, nil
}

// ExtractArtifact decodes a stored package and returns only its artifact entry.
// Used by the CDN endpoint when a client requests the bare binary instead of
// the full package.
func ExtractArtifact(raw []byte) (name string, data []byte, err error) {
	pkg, err := decode(raw, int64(len(raw))+1)
	if err != nil {
		return "", nil, err
	}
	return pkg.ArtifactName, pkg.Artifact, nil
}

func decode(raw []byte, maxSize int64) (*Package, error) {
	gzReader, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, parseErr("not a gzip archive", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	pkg := &Package{}
	var sawManifest bool
	var totalSize int64

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseErr("not a tar archive", err)
		}

		if header.Typeflag == tar.TypeDir {
			continue
		}
		if header.Typeflag != tar.TypeReg {
			return nil, parseErr(fmt.Sprintf("unsupported entry type for %s", header.Name), nil)
		}
		if err := validatePath(header.Name); err != nil {
			return nil, parseErr("bad entry path", err)
		}

		totalSize += header.Size
		if totalSize > maxSize {
			return nil, parseErr(fmt.Sprintf("uncompressed contents exceed %d bytes", maxSize), nil)
		}

		data, err := io.ReadAll(io.LimitReader(tarReader, maxSize))
		if err != nil {
			return nil, parseErr(fmt.Sprintf("failed to read entry %s", header.Name), err)
		}

		if filepath.Base(header.Name) == ManifestFileName {
			if sawManifest {
				return nil, parseErr("multiple manifest entries", nil)
			}
			sawManifest = true
			if err := json.Unmarshal(data, &pkg.Manifest); err != nil {
				return nil, parseErr("malformed manifest", err)
			}
			continue
		}

		if pkg.Artifact != nil {
			return nil, parseErr("package must contain exactly one artifact entry", nil)
		}
		pkg.ArtifactName = filepath.Base(header.Name)
		pkg.Artifact = data
	}

	if !sawManifest {
		return nil, parseErr("missing manifest.json", nil)
	}
	if pkg.Artifact == nil {
		return nil, parseErr("missing artifact entry", nil)
	}

	return pkg, nil
}

// slugPattern restricts slugs to lowercase alphanumerics plus -_. with an
// alphanumeric first character. Slugs appear in CDN refs and download
// filenames, so anything looser would let a manifest smuggle path or header
// syntax through.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validate checks that required manifest fields are present, that the slug is
// well formed, and that all version strings and requirement expressions parse.
func (m *Manifest) Validate() error {
	if m.Slug == "" {
		return parseErr("manifest missing _id", nil)
	}
	if !slugPattern.MatchString(m.Slug) {
		return parseErr(fmt.Sprintf("bad _id %q: slugs are lowercase alphanumerics plus '-', '_' and '.'", m.Slug), nil)
	}
	if m.Name == "" {
		return parseErr("manifest missing name", nil)
	}
	if m.Category == "" {
		return parseErr("manifest missing category", nil)
	}

	if _, err := version.NewVersion(m.Version); err != nil {
		return parseErr(fmt.Sprintf("bad version %q", m.Version), err)
	}
	if _, err := ParseRequirement(m.GameVersionReq); err != nil {
		return parseErr(fmt.Sprintf("bad game_version requirement %q", m.GameVersionReq), err)
	}
	for slug, req := range m.Depends {
		if _, err := ParseRequirement(req); err != nil {
			return parseErr(fmt.Sprintf("bad depends requirement %q for %s", req, slug), err)
		}
	}
	for slug, req := range m.Conflicts {
		if _, err := ParseRequirement(req); err != nil {
			return parseErr(fmt.Sprintf("bad conflicts requirement %q for %s", req, slug), err)
		}
	}

	return nil
}

func validatePath(path string) error {
	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) {
		return fmt.Errorf("absolute paths not allowed: %s", path)
	}
	if strings.HasPrefix(cleaned, "..") {
		return fmt.Errorf("path traversal not allowed: %s", path)
	}
	return nil
}
