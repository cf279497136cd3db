// Package upload stores user-submitted files. Avatars are normalized to a
// fixed-size square thumbnail with EXIF metadata stripped.
package upload

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// AvatarSize is the edge length of the stored avatar square.
const AvatarSize = 256

const avatarQuality = 85

// AvatarStore processes and persists avatar images under dir/avatars.
type AvatarStore struct {
	dir      string
	maxBytes int64
}

// NewAvatarStore creates an avatar store rooted at dir.
// maxBytes bounds the accepted upload size.
func NewAvatarStore(dir string, maxBytes int64) *AvatarStore {
	return &AvatarStore{dir: dir, maxBytes: maxBytes}
}

// Save reads an uploaded image, squares and shrinks it, and writes it under a
// random name. It returns the stored filename.
func (s *AvatarStore) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("image exceeds %d bytes", s.maxBytes)
	}

	format := detectFormat(data)
	if format == "" {
		return "", fmt.Errorf("unsupported image format")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	// Phone cameras store rotation in EXIF; bake it in before the
	// encoders drop the metadata.
	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
	img = imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos)

	encoded, ext, err := encodeAvatar(img, format)
	if err != nil {
		return "", fmt.Errorf("encoding avatar: %w", err)
	}

	name := uuid.NewString() + ext
	dir := filepath.Join(s.dir, "avatars")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating avatar directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), encoded, 0o644); err != nil {
		return "", fmt.Errorf("writing avatar: %w", err)
	}

	return name, nil
}

// Delete removes a stored avatar. Missing files are not an error.
func (s *AvatarStore) Delete(name string) error {
	safe := filepath.Base(name)
	if safe == "." || safe == ".." || safe == "" {
		return fmt.Errorf("invalid avatar name")
	}
	err := os.Remove(filepath.Join(s.dir, "avatars", safe))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting avatar: %w", err)
	}
	return nil
}

// Path returns the filesystem path of a stored avatar.
func (s *AvatarStore) Path(name string) string {
	return filepath.Join(s.dir, "avatars", filepath.Base(name))
}

// encodeAvatar writes the image in its source format where possible.
// Animated inputs and WebP collapse to JPEG since pure Go cannot encode them.
func encodeAvatar(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), ".png", nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: avatarQuality}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), ".jpg", nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation applies EXIF orientation transformation to an image.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
