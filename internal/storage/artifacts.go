// Package storage holds rendered certificate artifacts. The PDF
// renderer is an external collaborator: it reads a finalized
// certificate, renders, and uploads the result here for download links.
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// ArtifactStore is keyed by certificate ID; one artifact per
// certificate, overwritten on re-render.
type ArtifactStore interface {
	Put(certificateID string, r io.Reader) error
	Get(certificateID string) (io.ReadCloser, error)
}

type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) path(certificateID string) (string, error) {
	if certificateID == "" || certificateID == "." || certificateID == ".." ||
		certificateID != filepath.Base(certificateID) {
		return "", errors.New("bad artifact key")
	}
	return filepath.Join(s.base, "certificates", certificateID+".pdf"), nil
}

func (s *FSStore) Put(certificateID string, r io.Reader) error {
	dst, err := s.path(certificateID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func (s *FSStore) Get(certificateID string) (io.ReadCloser, error) {
	p, err := s.path(certificateID)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}
