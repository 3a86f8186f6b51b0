package service

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-admin/internal/config"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// sniffLen matches the header size mimetype inspects.
const sniffLen = 3072

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MediaPurpose picks the sub-directory an upload lands in.
type MediaPurpose string

const (
	MediaQuestion MediaPurpose = "question"
	MediaLogo     MediaPurpose = "logo"
)

// MediaUpload describes a stored image. Width and Height are zero for
// formats the server cannot decode (webp).
type MediaUpload struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// MediaService stores question images and school logos under the upload
// directory, which the router serves at /uploads.
type MediaService struct {
	dir      string
	maxBytes int64
}

func NewMediaService(cfg *config.Config) *MediaService {
	return &MediaService{dir: cfg.UploadDir, maxBytes: cfg.MaxUploadBytes}
}

// SaveUpload streams an image to disk under a random name. The type comes
// from the content; declaredSize is only used to reject early.
func (s *MediaService) SaveUpload(src io.Reader, declaredSize int64, purpose MediaPurpose) (*MediaUpload, error) {
	if declaredSize > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, declaredSize, s.maxBytes)
	}
	sub, err := purposeDir(purpose)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(io.LimitReader(src, s.maxBytes+1), sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	contentType, _, _ := strings.Cut(mimetype.Detect(head).String(), ";")
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s (allowed: %s)", ErrUnsupportedFileType, contentType, allowedImageTypes())
	}

	upload := &MediaUpload{ContentType: contentType}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(head)); err == nil {
		upload.Width, upload.Height = cfg.Width, cfg.Height
	}

	name := uuid.NewString() + ext
	upload.Size, err = s.write(filepath.Join(s.dir, sub), name, br)
	if err != nil {
		return nil, err
	}
	upload.URL = path.Join("/uploads", sub, name)
	return upload, nil
}

// write copies r into dir/name through a temp file so a partial upload is
// never visible under its final name.
func (s *MediaService) write(dir, name string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write upload: %w", err)
	}
	if n > s.maxBytes {
		return 0, fmt.Errorf("%w: max %d bytes", ErrFileTooLarge, s.maxBytes)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return 0, fmt.Errorf("store upload: %w", err)
	}
	return n, nil
}

func purposeDir(p MediaPurpose) (string, error) {
	switch p {
	case "", MediaQuestion:
		return "questions", nil
	case MediaLogo:
		return "branding", nil
	}
	return "", fmt.Errorf("%w: unknown purpose %q", ErrInvalidFilter, p)
}

func allowedImageTypes() string {
	types := make([]string, 0, len(imageExtensions))
	for t := range imageExtensions {
		types = append(types, t)
	}
	slices.Sort(types)
	return strings.Join(types, ", ")
}
