package fileutils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/packforge/launcher/api"
)

const downloadChunkSize = 32 * 1024

// ProgressFunc receives whole percentages 0-100. It is only invoked when the
// percentage changes, and may never fire at all when the server does not
// declare a content length; a final 100 is guaranteed on success.
type ProgressFunc func(percent int)

// Downloader streams URLs to disk with an atomic publish step: bytes land in
// a .part file which replaces the destination only after the full body has
// been written. A reader never observes a half-written file at the final
// path.
type Downloader struct {
	client *api.Client
	log    zerolog.Logger
}

func NewDownloader(client *api.Client, logger zerolog.Logger) *Downloader {
	return &Downloader{client: client, log: logger}
}

func (d *Downloader) Download(ctx context.Context, url, dest string, progress ProgressFunc) error {
	if url == "" {
		return fmt.Errorf("download: empty url")
	}
	if dest == "" {
		return fmt.Errorf("download: empty destination")
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return err
	}

	part := dest + ".part"
	err := d.downloadPart(ctx, url, part, progress)
	if err != nil {
		os.Remove(part)
		d.log.Error().Err(err).Str("url", url).Msg("download failed")
		return err
	}

	// Delete-then-rename publish. The prior file (if any) stays intact until
	// the replacement has fully arrived.
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		os.Remove(part)
		return err
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return err
	}

	d.log.Debug().Str("url", url).Str("dest", dest).Msg("downloaded")
	return nil
}

func (d *Downloader) downloadPart(ctx context.Context, url, part string, progress ProgressFunc) error {
	body, total, err := d.client.GetStream(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(part)
	if err != nil {
		return err
	}

	var written int64
	last := -1
	buf := make([]byte, downloadChunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return werr
			}
			written += int64(n)
			if progress != nil && total > 0 {
				pct := int(written * 100 / total)
				if pct > 100 {
					pct = 100
				}
				if pct != last {
					progress(pct)
					last = pct
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return rerr
		}
	}

	if err := out.Close(); err != nil {
		return err
	}
	if progress != nil && last != 100 {
		progress(100)
	}
	return nil
}

// VerifyChecksum compares a file's SHA-256 digest to an expected hex string.
// Comparison ignores case and hyphens. A missing file verifies false.
func VerifyChecksum(path, expected string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}

	actual := hex.EncodeToString(h.Sum(nil))
	want := strings.ToLower(strings.ReplaceAll(expected, "-", ""))
	return actual == want
}

// Sha256Hex returns the hex SHA-256 digest of a byte slice.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
