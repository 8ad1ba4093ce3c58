package adapters

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/core"
	"python-buildpack/internal/ports"
	"python-buildpack/internal/shared"
	"python-buildpack/internal/types"
)

const defaultHTTPTimeout = 5 * time.Minute

// DownloaderAdapter fetches release archives over HTTP and unpacks them.
// Transport failures and 5xx/429 responses are retried within Retry.
type DownloaderAdapter struct {
	Client *http.Client
	Retry  shared.RetryPolicy
}

func NewDownloaderAdapter(timeoutSec int, retries int, retryDelayMs int) DownloaderAdapter {
	return DownloaderAdapter{
		Client: &http.Client{Timeout: normalizeHTTPTimeout(timeoutSec)},
		Retry:  shared.NewRetryPolicy(retries, retryDelayMs),
	}
}

func normalizeHTTPTimeout(value int) time.Duration {
	timeout := time.Duration(value) * time.Second
	if timeout <= 0 {
		return defaultHTTPTimeout
	}
	return timeout
}

func (a DownloaderAdapter) FetchArchive(ctx context.Context, url string, format types.ArchiveFormat, dest string, strip int) error {
	tmp, err := os.CreateTemp("", "python-buildpack-download-*")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create download file").
			WithCause(err)
	}
	defer func() {
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	exhausted, err := a.Retry.Do(ctx, func(attempt int) (bool, error) {
		if attempt > 0 {
			log.Ctx(ctx).Warn().Str("url", shared.RedactCredentials(url)).Int("attempt", attempt+1).Msg("retrying download")
		}
		if err := tmp.Truncate(0); err != nil {
			return false, err
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return false, err
		}
		return a.downloadOnce(ctx, url, tmp)
	})
	if err != nil {
		if exhausted {
			return types.NewBuildError(types.ErrorKindNetwork, types.ReasonRetriesExhausted,
				errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("failed to download %s after several attempts", shared.RedactCredentials(url))).
					WithCause(err))
		}
		return err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to rewind download file").
			WithCause(err)
	}
	return extractArchive(tmp, format, dest, strip)
}

// downloadOnce reports whether a failure is worth another attempt.
func (a DownloaderAdapter) downloadOnce(ctx context.Context, url string, out io.Writer) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to create download request").
			WithCause(err)
	}
	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		retry := core.ClassifyTransportError(err) == types.FailureRetryable
		if !retry {
			return false, types.NewBuildError(types.ErrorKindNetwork, "",
				errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("failed to download %s", shared.RedactCredentials(url))).
					WithCause(err))
		}
		return true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, types.NewBuildError(types.ErrorKindNetwork, types.ReasonNotAvailable,
			errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("%s does not exist", shared.RedactCredentials(url))).
				WithCause(shared.HTTPStatusError(resp.StatusCode, url)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := shared.HTTPStatusErrorWithBody(resp.StatusCode, url, string(body))
		if core.ClassifyHTTPStatus(resp.StatusCode) == types.FailureRetryable {
			return true, statusErr
		}
		return false, types.NewBuildError(types.ErrorKindNetwork, "",
			errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to download %s", shared.RedactCredentials(url))).
				WithCause(statusErr))
	}
	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return core.ClassifyTransportError(err) == types.FailureRetryable, err
	}
	log.Ctx(ctx).Debug().Str("url", shared.RedactCredentials(url)).Int64("bytes", written).Msg("download complete")
	return false, nil
}

func extractArchive(r io.Reader, format types.ArchiveFormat, dest string, strip int) error {
	var reader io.Reader
	switch format {
	case types.ArchiveFormatTarZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return archiveError("failed to open zstd stream", err)
		}
		defer decoder.Close()
		reader = decoder
	case types.ArchiveFormatTarGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return archiveError("failed to open gzip stream", err)
		}
		defer gz.Close()
		reader = gz
	default:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported archive format %q", format))
	}
	return untar(reader, dest, strip)
}

func untar(r io.Reader, dest string, strip int) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return archiveError("failed to create extraction directory", err)
	}
	root, err := filepath.Abs(dest)
	if err != nil {
		return archiveError("failed to resolve extraction directory", err)
	}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return archiveError("failed to read archive entry", err)
		}
		name, ok := stripComponents(hdr.Name, strip)
		if !ok {
			continue
		}
		path, err := safeJoin(root, name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, hdr.FileInfo().Mode().Perm()|0o700); err != nil {
				return archiveError("failed to create directory", err)
			}
		case tar.TypeReg:
			if err := writeArchiveFile(path, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return archiveError(fmt.Sprintf("symlink %s points outside the archive", hdr.Name), nil)
			}
			if _, err := safeJoin(root, filepath.Join(filepath.Dir(name), hdr.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return archiveError("failed to create directory", err)
			}
			_ = os.Remove(path)
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return archiveError("failed to create symlink", err)
			}
		case tar.TypeLink:
			linkName, ok := stripComponents(hdr.Linkname, strip)
			if !ok {
				continue
			}
			target, err := safeJoin(root, linkName)
			if err != nil {
				return err
			}
			_ = os.Remove(path)
			if err := os.Link(target, path); err != nil {
				return archiveError("failed to create hard link", err)
			}
		default:
			// Device nodes and similar entries never appear in runtime
			// archives; skip them.
		}
	}
}

func writeArchiveFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return archiveError("failed to create directory", err)
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return archiveError("failed to create file", err)
	}
	if _, err := io.Copy(fh, r); err != nil {
		fh.Close()
		return archiveError("failed to write file", err)
	}
	if err := fh.Close(); err != nil {
		return archiveError("failed to close file", err)
	}
	return nil
}

func stripComponents(name string, strip int) (string, bool) {
	clean := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(name)), "./")
	parts := strings.Split(clean, "/")
	if len(parts) <= strip {
		return "", false
	}
	rest := strings.Join(parts[strip:], "/")
	if rest == "" || rest == "." {
		return "", false
	}
	return rest, true
}

func safeJoin(root string, name string) (string, error) {
	path := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", archiveError(fmt.Sprintf("archive entry %s escapes the extraction directory", name), err)
	}
	return path, nil
}

func archiveError(msg string, err error) error {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg)
	if err != nil {
		builder = builder.WithCause(err)
	}
	return types.NewBuildError(types.ErrorKindLayerIO, "", builder)
}

var _ ports.DownloaderPort = DownloaderAdapter{}
