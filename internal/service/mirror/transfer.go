package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
	"github.com/jiegec/rustup-mirror/internal/fetcher"
	repository "github.com/jiegec/rustup-mirror/internal/repository/mirror"
)

var errShortBody = errors.New("body shorter than declared length")

// countingReader remembers how much was read and the first read error.
type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

// Read implements io.Reader.
func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)

	if err != nil && !errors.Is(err, io.EOF) && c.err == nil {
		c.err = err
	}

	return n, err
}

// transfer fetches the upstream file at urlPath and applies it at localPath.
// Read failures are transfer errors; failures to write the file are returned as is.
func transfer(
	ctx context.Context,
	source fetcher.Fetcher,
	repo *repository.FileRepository,
	urlPath, localPath string,
) (int64, error) {
	body, length, err := source.Fetch(ctx, strings.TrimPrefix(urlPath, "/"))
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = body.Close()
	}()

	existed, err := repo.Exists(localPath)
	if err != nil {
		return 0, err
	}

	counter := &countingReader{r: body}

	err = repo.ApplyArtifact(localPath, counter)
	if counter.err != nil {
		if !existed {
			_ = repo.Remove(localPath)
		}

		return counter.n, fmt.Errorf("read %s: %w: %w", urlPath, dist.ErrTransfer, counter.err)
	}

	if err != nil {
		return counter.n, err
	}

	if counter.n != length {
		_ = repo.Remove(localPath)

		return counter.n, fmt.Errorf("%s: got %d of %d bytes: %w: %w",
			urlPath, counter.n, length, dist.ErrTransfer, errShortBody)
	}

	return counter.n, nil
}
