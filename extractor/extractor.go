package extractor

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/mu-semtech/delta-index-maintainer/errs"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

// MaximumFileSize is the default §4.3 size ceiling above which a file
// is skipped rather than sent for extraction.
const MaximumFileSize = 200 * 1024 * 1024

// Client implements host.Extractor: it reads a file from disk, checks
// the cache by content digest, and on a miss POSTs the file to a
// remote extraction service (e.g. a Tika-backed microservice) pooled
// the same way rdfclient.Pool pools SPARQL handles.
type Client struct {
	serviceURL     string
	http           *http.Client
	cache          *Cache
	maxFileSize    int64
	tokens         chan struct{}
	acquireTimeout time.Duration
	log            utils.Logger
}

func New(serviceURL string, cache *Cache, maxFileSize int64, poolSize int, log utils.Logger) *Client {
	if maxFileSize <= 0 {
		maxFileSize = MaximumFileSize
	}
	if poolSize <= 0 {
		poolSize = 4
	}
	c := &Client{
		serviceURL:     serviceURL,
		http:           &http.Client{Timeout: 60 * time.Second},
		cache:          cache,
		maxFileSize:    maxFileSize,
		tokens:         make(chan struct{}, poolSize),
		acquireTimeout: 3 * time.Second,
		log:            log,
	}
	for i := 0; i < poolSize; i++ {
		c.tokens <- struct{}{}
	}
	return c
}

// Extract implements host.Extractor. path is a local filesystem path
// already resolved from the attachment's URI by the Document Builder.
func (c *Client) Extract(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errs.Wrap(errs.KindFileMissing, err, path)
	}
	if info.Size() > c.maxFileSize {
		return "", errs.Wrap(errs.KindFileTooLarge, errs.ErrFileTooLarge, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errs.Wrap(errs.KindFileMissing, err, path)
	}

	digest := Digest(content)
	if text, ok, negative := c.cache.Get(digest); ok {
		if negative {
			return "", nil
		}
		return text, nil
	}

	text, err := c.extractRemote(ctx, path, content)
	if err != nil {
		// Propagate rather than cache: a failed extraction (transient,
		// exhausted-retry, or otherwise) is not the same as a legitimate
		// empty-content success, and caching it negative would keep
		// refusing the file after the extractor service recovers.
		return "", err
	}
	if text == "" {
		if putErr := c.cache.PutNegative(digest); putErr != nil {
			c.log.WarnCtx(ctx, "failed to write negative cache entry", "path", path, "err", putErr)
		}
		return "", nil
	}
	if putErr := c.cache.Put(digest, text); putErr != nil {
		c.log.WarnCtx(ctx, "failed to write extraction cache entry", "path", path, "err", putErr)
	}
	return text, nil
}

func (c *Client) acquire(ctx context.Context) error {
	timer := time.NewTimer(c.acquireTimeout)
	defer timer.Stop()
	select {
	case <-c.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errs.Wrap(errs.KindTransientRemote, errs.ErrTransientRemote, "extractor pool exhausted")
	}
}

func (c *Client) release() { c.tokens <- struct{}{} }

func (c *Client) extractRemote(ctx context.Context, path string, content []byte) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	defer c.release()

	var text string
	err := errs.WithBackoff(ctx, errs.Quadratic, func() error {
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			part, err := mw.CreateFormFile("file", path)
			if err == nil {
				_, err = part.Write(content)
			}
			mw.Close()
			pw.CloseWithError(err)
		}()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL+"/extract", pr)
		if err != nil {
			return pkgerrors.Wrap(err, "build extraction request")
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())

		resp, err := c.http.Do(req)
		if err != nil {
			return errs.Wrap(errs.KindTransientRemote, pkgerrors.Wrap(err, "extraction transport"), path)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.Wrap(errs.KindTransientRemote, pkgerrors.Wrap(err, "read extraction response"), path)
		}
		if resp.StatusCode >= 500 {
			return errs.Wrap(errs.KindTransientRemote, pkgerrors.Errorf("extraction service returned %d", resp.StatusCode), path)
		}
		if resp.StatusCode >= 400 {
			return errs.Wrap(errs.KindBadRequest, pkgerrors.Errorf("extraction service returned %d", resp.StatusCode), path)
		}
		text = string(body)
		return nil
	})
	return text, err
}
