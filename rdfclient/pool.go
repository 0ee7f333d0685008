// Package rdfclient is the RDF Client Pool of spec.md §4.5: a
// fixed-size pool of graph-store query handles with retry-with-backoff
// on transient failures. Its methods run queries either sudo or
// group-scoped; no exported method runs a query in the default mode
// (neither header set).
//
// Grounded on network/net.go's KeepConnecting retry-loop shape,
// generalized from TCP reconnect to HTTP query retry, and on
// network.Net's pooled-connection bookkeeping.
package rdfclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/mu-semtech/delta-index-maintainer/errs"
	"github.com/mu-semtech/delta-index-maintainer/host"
	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

const (
	headerSudo   = "mu-auth-sudo"
	headerGroups = "mu-auth-allowed-groups"
)

// Pool is a fixed-size pool of HTTP handles against one SPARQL
// endpoint. Acquiring a handle blocks up to acquireTimeout (default
// 3s per spec.md §5); exhaustion surfaces as a transient error so
// WithBackoff retries it like any other transient failure.
type Pool struct {
	endpoint       string
	client         *http.Client
	tokens         chan struct{}
	acquireTimeout time.Duration
	log            utils.Logger
	latency        *utils.AvgVal
}

// NewPool builds a pool of size handles against endpoint. size and
// acquireTimeout default to spec.md §4.5/§5's 4 and 3s when zero.
func NewPool(endpoint string, size int, acquireTimeout time.Duration, log utils.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 3 * time.Second
	}
	p := &Pool{
		endpoint:       endpoint,
		client:         &http.Client{Timeout: 30 * time.Second},
		tokens:         make(chan struct{}, size),
		acquireTimeout: acquireTimeout,
		log:            log,
		latency:        &utils.AvgVal{},
	}
	for i := 0; i < size; i++ {
		p.tokens <- struct{}{}
	}
	return p
}

func (p *Pool) acquire(ctx context.Context) error {
	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()
	select {
	case <-p.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errs.Wrap(errs.KindTransientRemote, errs.ErrTransientRemote, "rdf pool exhausted")
	}
}

func (p *Pool) release() {
	p.tokens <- struct{}{}
}

type authMode byte

const (
	modeDefault authMode = iota
	modeSudo
	modeScoped
)

func (p *Pool) do(ctx context.Context, query string, mode authMode, groups model.AuthorizationGroupSet) (host.Bindings, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	traceID := uuid.Must(uuid.NewRandom()).String()
	ctx = utils.WithDefaultArgs(ctx, "trace_id", traceID)

	var bindings host.Bindings
	start := time.Now()
	err := errs.WithBackoff(ctx, errs.Quadratic, func() error {
		b, err := p.execute(ctx, query, mode, groups)
		if err != nil {
			return err
		}
		bindings = b
		return nil
	})
	p.latency.Add(time.Since(start).Seconds())
	if err != nil {
		p.log.ErrorCtx(ctx, "rdf query failed", "err", err)
		return nil, err
	}
	return bindings, nil
}

func (p *Pool) execute(ctx context.Context, query string, mode authMode, groups model.AuthorizationGroupSet) (host.Bindings, error) {
	form := "query=" + query
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBufferString(form))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "build sparql request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	switch mode {
	case modeSudo:
		req.Header.Set(headerSudo, "true")
	case modeScoped:
		req.Header.Set(headerGroups, groups.Serialize())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRemote, pkgerrors.Wrap(err, "sparql transport"), "executing query")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRemote, pkgerrors.Wrap(err, "read sparql response"), "executing query")
	}

	if resp.StatusCode >= 500 {
		return nil, errs.Wrap(errs.KindTransientRemote, fmt.Errorf("sparql store returned %d: %s", resp.StatusCode, body), "executing query")
	}
	if resp.StatusCode >= 400 {
		return nil, errs.Wrap(errs.KindBadRequest, fmt.Errorf("sparql store returned %d: %s", resp.StatusCode, body), "executing query")
	}

	return parseSparqlResults(body)
}

// SelectSudo implements host.RDFQuerier.
func (p *Pool) SelectSudo(ctx context.Context, query string) (host.Bindings, error) {
	return p.do(ctx, query, modeSudo, nil)
}

// SelectScoped implements host.RDFQuerier.
func (p *Pool) SelectScoped(ctx context.Context, query string, groups model.AuthorizationGroupSet) (host.Bindings, error) {
	return p.do(ctx, query, modeScoped, groups)
}

// UpdateSudo implements host.RDFQuerier: a SPARQL UPDATE executed
// unrestricted, used to persist Index Registry entries into the RDF
// store (spec.md §6, persist_indexes).
func (p *Pool) UpdateSudo(ctx context.Context, update string) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	return errs.WithBackoff(ctx, errs.Quadratic, func() error {
		form := "update=" + update
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBufferString(form))
		if err != nil {
			return pkgerrors.Wrap(err, "build sparql update request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(headerSudo, "true")

		resp, err := p.client.Do(req)
		if err != nil {
			return errs.Wrap(errs.KindTransientRemote, pkgerrors.Wrap(err, "sparql update transport"), "executing update")
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.Wrap(errs.KindTransientRemote, pkgerrors.Wrap(err, "read sparql update response"), "executing update")
		}
		if resp.StatusCode >= 500 {
			return errs.Wrap(errs.KindTransientRemote, fmt.Errorf("sparql store returned %d: %s", resp.StatusCode, body), "executing update")
		}
		if resp.StatusCode >= 400 {
			return errs.Wrap(errs.KindBadRequest, fmt.Errorf("sparql store returned %d: %s", resp.StatusCode, body), "executing update")
		}
		return nil
	})
}

// AskSudo implements host.RDFQuerier: a trivial health-check ASK,
// always run sudo per spec.md §4.5.
func (p *Pool) AskSudo(ctx context.Context, query string) (bool, error) {
	if err := p.acquire(ctx); err != nil {
		return false, err
	}
	defer p.release()

	var ok bool
	err := errs.WithBackoff(ctx, errs.Quadratic, func() error {
		form := "query=" + query
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBufferString(form))
		if err != nil {
			return pkgerrors.Wrap(err, "build ask request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/sparql-results+json")
		req.Header.Set(headerSudo, "true")

		resp, err := p.client.Do(req)
		if err != nil {
			return errs.Wrap(errs.KindTransientRemote, pkgerrors.Wrap(err, "ask transport"), "health check")
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.Wrap(errs.KindTransientRemote, pkgerrors.Wrap(err, "read ask response"), "health check")
		}
		if resp.StatusCode >= 500 {
			return errs.Wrap(errs.KindTransientRemote, fmt.Errorf("ask returned %d", resp.StatusCode), "health check")
		}
		var decoded struct {
			Boolean bool `json:"boolean"`
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return pkgerrors.Wrap(err, "decode ask response")
		}
		ok = decoded.Boolean
		return nil
	})
	return ok, err
}
