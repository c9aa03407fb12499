package filestore

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxImageSize = 2 << 20 // 2MB

var (
	ErrUnsupportedType = errors.New("only jpeg, jpg, png and gif images are allowed")
	ErrTooLarge        = errors.New("image exceeds the 2MB limit")
)

// Store abstracts the image file store so handlers can be tested without a
// real filesystem.
type Store interface {
	Save(file *multipart.FileHeader) (string, error)
	Delete(relPath string) error
	URL(relPath string) string
}

// Disk stores files under Root, returning paths relative to it.
type Disk struct {
	Root string
}

func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Join(root, "products"), 0o755); err != nil {
		return nil, err
	}
	return &Disk{Root: root}, nil
}

func (d *Disk) Save(file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
	default:
		return "", ErrUnsupportedType
	}
	if file.Size > MaxImageSize {
		return "", ErrTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	relPath := path.Join("products", uuid.NewString()+ext)
	dst, err := os.Create(filepath.Join(d.Root, filepath.FromSlash(relPath)))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return relPath, nil
}

func (d *Disk) Delete(relPath string) error {
	if relPath == "" {
		return nil
	}
	err := os.Remove(filepath.Join(d.Root, filepath.FromSlash(relPath)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *Disk) URL(relPath string) string {
	return "/uploads/" + relPath
}
