// Package searchclient is the thin pooled REST client against the
// search engine's index/document/cluster API (spec.md §1's "search
// engine" dependency, treated as an external black box per the spec's
// own scoping — only the call surface host.SearchEngine needs is
// implemented here).
//
// Grounded on rdfclient.Pool's pooling/retry shape, which is itself
// grounded on network/net.go's KeepConnecting retry loop.
package searchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/mu-semtech/delta-index-maintainer/errs"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

// Client is a fixed-size pooled REST client against one search engine
// base URL.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         chan struct{}
	acquireTimeout time.Duration
	log            utils.Logger
}

// New builds a Client with size concurrent handles (default 4) and
// acquireTimeout (default 3s), matching rdfclient.NewPool's defaults.
func New(baseURL string, size int, acquireTimeout time.Duration, log utils.Logger) *Client {
	if size <= 0 {
		size = 4
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 3 * time.Second
	}
	c := &Client{
		baseURL:        baseURL,
		http:           &http.Client{Timeout: 30 * time.Second},
		tokens:         make(chan struct{}, size),
		acquireTimeout: acquireTimeout,
		log:            log,
	}
	for i := 0; i < size; i++ {
		c.tokens <- struct{}{}
	}
	return c
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
		return errs.Wrap(errs.KindTransientRemote, errs.ErrTransientRemote, "search client pool exhausted")
	}
}

func (c *Client) release() { c.tokens <- struct{}{} }

func (c *Client) do(ctx context.Context, method, path string, body any) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	return errs.WithBackoff(ctx, errs.Quadratic, func() error {
		var reader io.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				return pkgerrors.Wrap(err, "encode search request body")
			}
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return pkgerrors.Wrap(err, "build search request")
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return errs.Wrap(errs.KindTransientRemote, pkgerrors.Wrap(err, "search transport"), path)
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return errs.Wrap(errs.KindNotFound, errs.ErrNotFound, path)
		case resp.StatusCode >= 500:
			return errs.Wrap(errs.KindTransientRemote, fmt.Errorf("search engine returned %d: %s", resp.StatusCode, respBody), path)
		case resp.StatusCode >= 400:
			return errs.Wrap(errs.KindBadRequest, fmt.Errorf("search engine returned %d: %s", resp.StatusCode, respBody), path)
		}
		return nil
	})
}

// CreateIndex implements host.SearchEngine.
func (c *Client) CreateIndex(ctx context.Context, name string, settings map[string]any) error {
	return c.do(ctx, http.MethodPut, "/"+name, settings)
}

// DeleteIndex implements host.SearchEngine.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, "/"+name, nil)
	if errs.Classify(err) == errs.KindNotFound {
		// already gone: deletion is idempotent.
		return nil
	}
	return err
}

// UpsertDocument implements host.SearchEngine.
func (c *Client) UpsertDocument(ctx context.Context, index, id string, doc map[string]any) error {
	return c.do(ctx, http.MethodPut, "/"+index+"/_doc/"+id, doc)
}

// DeleteDocument implements host.SearchEngine.
func (c *Client) DeleteDocument(ctx context.Context, index, id string) error {
	err := c.do(ctx, http.MethodDelete, "/"+index+"/_doc/"+id, nil)
	if errs.Classify(err) == errs.KindNotFound {
		return nil
	}
	return err
}
