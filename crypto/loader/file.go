package loader

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/xerrors"
)

// keyPerm only lets the owner read a key.
const keyPerm fs.FileMode = 0400

// fileLoader keeps a key in a single file.
//
// - implements loader.Loader
type fileLoader struct {
	path string

	readFile func(name string) ([]byte, error)
	create   func(name string, flag int, perm fs.FileMode) (*os.File, error)
}

// NewFileLoader returns a loader of the key at the path.
func NewFileLoader(path string) Loader {
	return fileLoader{
		path:     path,
		readFile: os.ReadFile,
		create:   os.OpenFile,
	}
}

// LoadOrCreate implements loader.Loader. The file of a new key is only readable
// by its owner. It fails instead of replacing a file that appeared meanwhile.
func (l fileLoader) LoadOrCreate(g Generator) ([]byte, error) {
	data, err := l.readFile(l.path)
	if err == nil {
		return data, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return nil, xerrors.Errorf("failed to read key: %v", err)
	}

	data, err = g.Generate()
	if err != nil {
		return nil, xerrors.Errorf("generator failed: %v", err)
	}

	file, err := l.create(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyPerm)
	if err != nil {
		return nil, xerrors.Errorf("failed to create key file: %v", err)
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		return nil, xerrors.Errorf("failed to write key: %v", err)
	}

	err = file.Close()
	if err != nil {
		return nil, xerrors.Errorf("failed to close key file: %v", err)
	}

	return data, nil
}

// Load implements loader.Loader.
func (l fileLoader) Load() ([]byte, error) {
	data, err := l.readFile(l.path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read key: %v", err)
	}

	return data, nil
}
