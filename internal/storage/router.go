package storage

import (
	"context"
	"fmt"
)

// Router dispatches each call to the backend registered for the location's
// scheme. A nil backend means the scheme is not configured.
type Router struct {
	Local Storage
	S3    Storage
	GS    Storage
}

func (r *Router) backend(location string) (Storage, error) {
	loc, err := Parse(location)
	if err != nil {
		return nil, err
	}
	var backend Storage
	switch loc.Scheme {
	case SchemeLocal:
		backend = r.Local
	case SchemeS3:
		backend = r.S3
	case SchemeGS:
		backend = r.GS
	}
	if backend == nil {
		return nil, fmt.Errorf("no storage backend configured for %s://", loc.Scheme)
	}
	return backend, nil
}

func (r *Router) List(ctx context.Context, location string) ([]string, error) {
	backend, err := r.backend(location)
	if err != nil {
		return nil, err
	}
	return backend.List(ctx, location)
}

func (r *Router) Download(ctx context.Context, location, dstDir string) ([]string, error) {
	backend, err := r.backend(location)
	if err != nil {
		return nil, err
	}
	return backend.Download(ctx, location, dstDir)
}

func (r *Router) Upload(ctx context.Context, localFile, location string) error {
	backend, err := r.backend(location)
	if err != nil {
		return err
	}
	return backend.Upload(ctx, localFile, location)
}

// Schemes reports which schemes have a backend, for health output.
func (r *Router) Schemes() []Scheme {
	var out []Scheme
	if r.Local != nil {
		out = append(out, SchemeLocal)
	}
	if r.S3 != nil {
		out = append(out, SchemeS3)
	}
	if r.GS != nil {
		out = append(out, SchemeGS)
	}
	return out
}
