package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a folder location has no objects.
var ErrNotFound = errors.New("location not found")

// Storage moves files between a remote folder and the local filesystem.
type Storage interface {
	// List returns the sorted top-level file names of the folder at location.
	List(ctx context.Context, location string) ([]string, error)
	// Download copies every top-level file of the folder at location into
	// dstDir and returns the copied names.
	Download(ctx context.Context, location, dstDir string) ([]string, error)
	// Upload copies localFile into the folder at location, keeping its base name.
	Upload(ctx context.Context, localFile, location string) error
}

// Scheme identifies a storage backend.
type Scheme string

const (
	SchemeLocal Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeGS    Scheme = "gs"
)

// Location is a parsed storage address. For local locations Bucket is empty
// and Key holds the filesystem path.
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
}

// Parse splits raw into a Location. Strings without a scheme are local paths.
func Parse(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.New("empty location")
	}
	if !strings.Contains(raw, "://") {
		return Location{Scheme: SchemeLocal, Key: filepath.Clean(raw)}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	switch Scheme(strings.ToLower(u.Scheme)) {
	case SchemeLocal:
		if u.Path == "" {
			return Location{}, fmt.Errorf("location %q has no path", raw)
		}
		return Location{Scheme: SchemeLocal, Key: filepath.Clean(u.Path)}, nil
	case SchemeS3, SchemeGS:
		if u.Host == "" {
			return Location{}, fmt.Errorf("location %q has no bucket", raw)
		}
		return Location{
			Scheme: Scheme(strings.ToLower(u.Scheme)),
			Bucket: u.Host,
			Key:    strings.Trim(u.Path, "/"),
		}, nil
	default:
		return Location{}, fmt.Errorf("location %q: unsupported scheme %q", raw, u.Scheme)
	}
}

// String renders the location back into its canonical form.
func (l Location) String() string {
	switch l.Scheme {
	case SchemeLocal:
		return l.Key
	default:
		if l.Key == "" {
			return fmt.Sprintf("%s://%s", l.Scheme, l.Bucket)
		}
		return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Key)
	}
}

// Join appends path elements to the location.
func (l Location) Join(elem ...string) Location {
	out := l
	if l.Scheme == SchemeLocal {
		out.Key = filepath.Join(append([]string{l.Key}, elem...)...)
		return out
	}
	out.Key = strings.TrimPrefix(path.Join(append([]string{l.Key}, elem...)...), "/")
	return out
}

// Base returns the last path segment of the location.
func (l Location) Base() string {
	if l.Scheme == SchemeLocal {
		return filepath.Base(l.Key)
	}
	if l.Key == "" {
		return l.Bucket
	}
	return path.Base(l.Key)
}

// JoinLocation appends elem to the raw location string.
func JoinLocation(raw string, elem ...string) (string, error) {
	loc, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return loc.Join(elem...).String(), nil
}
