package storage

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	appErr "arbiter/pkg/errors"
)

// PacketFetcher downloads a packet archive (tar.zst) from object storage
// and extracts it under a local cache directory.
type PacketFetcher struct {
	store    ObjectStorage
	bucket   string
	cacheDir string
}

func NewPacketFetcher(store ObjectStorage, bucket, cacheDir string) *PacketFetcher {
	return &PacketFetcher{store: store, bucket: bucket, cacheDir: cacheDir}
}

// Fetch downloads and unpacks one packet, returning the extraction root.
// An already extracted packet with a matching ETag marker is reused.
func (f *PacketFetcher) Fetch(ctx context.Context, key string) (string, error) {
	info, err := f.store.StatObject(ctx, f.bucket, key)
	if err != nil {
		return "", err
	}

	destDir := filepath.Join(f.cacheDir, sanitizeKey(key))
	markerPath := filepath.Join(destDir, ".etag")
	if marker, readErr := os.ReadFile(markerPath); readErr == nil && string(marker) == info.ETag {
		return destDir, nil
	}

	if err := os.RemoveAll(destDir); err != nil {
		return "", appErr.Wrapf(err, appErr.ScratchSpaceError, "clear packet cache failed")
	}
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return "", appErr.Wrapf(err, appErr.ScratchSpaceError, "create packet cache failed")
	}

	body, err := f.store.GetObject(ctx, f.bucket, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if err := extractTarZst(body, destDir); err != nil {
		_ = os.RemoveAll(destDir)
		return "", err
	}
	if err := os.WriteFile(markerPath, []byte(info.ETag), 0640); err != nil {
		return "", appErr.Wrapf(err, appErr.ScratchSpaceError, "write etag marker failed")
	}
	return destDir, nil
}

func extractTarZst(r io.Reader, destDir string) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return appErr.Wrapf(err, appErr.PacketInvalid, "open zstd stream failed")
	}
	defer dec.Close()

	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.PacketInvalid, "read tar entry failed")
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return appErr.Wrapf(err, appErr.ScratchSpaceError, "create dir %s failed", hdr.Name)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
				return appErr.Wrapf(err, appErr.ScratchSpaceError, "create parent of %s failed", hdr.Name)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0750)
			if err != nil {
				return appErr.Wrapf(err, appErr.ScratchSpaceError, "create file %s failed", hdr.Name)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return appErr.Wrapf(err, appErr.ScratchSpaceError, "write file %s failed", hdr.Name)
			}
			if err := out.Close(); err != nil {
				return appErr.Wrapf(err, appErr.ScratchSpaceError, "close file %s failed", hdr.Name)
			}
		default:
			// Symlinks and devices are refused, packet archives carry
			// plain files only.
			return appErr.Newf(appErr.PacketInvalid, "unsupported tar entry type for %s", hdr.Name)
		}
	}
}

// safeJoin rejects entries that would escape the destination directory.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.Clean(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", appErr.Newf(appErr.PacketInvalid, "tar entry %q escapes archive root", name)
	}
	return target, nil
}

func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return replacer.Replace(key)
}
