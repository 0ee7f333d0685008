// Command server boots the delta index maintainer: it wires the RDF
// client pool, search engine client, content extractor, Index
// Registry, Delta Handler, Update Handler, Index Manager, and the
// /update HTTP endpoint, then blocks until terminated.
//
// Replaces the teacher's cmd/main.go REPL entrypoint — this program
// has no interactive console, only a boot sequence and a signal wait.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mu-semtech/delta-index-maintainer/builder"
	"github.com/mu-semtech/delta-index-maintainer/config"
	"github.com/mu-semtech/delta-index-maintainer/delta"
	"github.com/mu-semtech/delta-index-maintainer/extractor"
	"github.com/mu-semtech/delta-index-maintainer/host"
	"github.com/mu-semtech/delta-index-maintainer/httpapi"
	"github.com/mu-semtech/delta-index-maintainer/indexmanager"
	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/rdfclient"
	"github.com/mu-semtech/delta-index-maintainer/registry"
	"github.com/mu-semtech/delta-index-maintainer/searchclient"
	"github.com/mu-semtech/delta-index-maintainer/updatequeue"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

// appHost implements host.Host by aggregating the concrete clients
// built in main.
type appHost struct {
	rdf       host.RDFQuerier
	search    host.SearchEngine
	extractor host.Extractor
	log       utils.Logger
	cfg       *config.Config
}

func (h *appHost) RDF() host.RDFQuerier      { return h.rdf }
func (h *appHost) Search() host.SearchEngine { return h.search }
func (h *appHost) Extractor() host.Extractor { return h.extractor }
func (h *appHost) Logger() utils.Logger      { return h.log }
func (h *appHost) Config() host.Config       { return h.cfg }

func main() {
	configPath := flag.String("config", "/config/config.json", "path to the configuration file")
	listenAddr := flag.String("listen", ":8080", "address to serve the delta ingestion endpoint on")
	flag.Parse()

	log := utils.NewDefaultLogger(slog.LevelInfo)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := rdfclient.NewPool(cfg.RDFEndpoint, cfg.PoolSize, time.Duration(cfg.RDFQueryTimeoutSeconds)*time.Second, log)
	search := searchclient.New(cfg.SearchEndpoint, cfg.PoolSize, 3*time.Second, log)
	cache := extractor.NewCache(cfg.ExtractorCache)
	extractorClient := extractor.New(cfg.ExtractorURL, cache, extractor.MaximumFileSize, cfg.PoolSize, log)

	h := &appHost{rdf: pool, search: search, extractor: extractorClient, log: log, cfg: cfg}

	typeRegistry := cfg.BuildTypeRegistry()
	reg := registry.New(cfg.IgnoredAllowedGroups())

	queue := updatequeue.New(time.Duration(cfg.UpdateWaitInterval())*time.Minute, log)

	store, err := updatequeue.OpenStore(cfg.QueueStorePath)
	if err != nil {
		log.Error("failed to open update queue store", "err", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := queue.Restore(store); err != nil {
		log.Error("failed to restore update queue state", "err", err)
	}

	docBuilder := builder.New(typeRegistry, pool, extractorClient, cfg.AttachmentsPathBase(), log)
	lister := builder.NewLister(pool, log)

	eager := make([]indexmanager.EagerGroupCombination, 0, len(cfg.EagerGroupCombinations()))
	for _, groups := range cfg.EagerGroupCombinations() {
		eager = append(eager, indexmanager.EagerGroupCombination{Groups: groups})
	}
	manager := indexmanager.New(reg, h, docBuilder, lister, "delta-index", cfg.BatchSize, cfg.MaxBatches, cfg.DefaultSettings, eager)

	if cfg.PersistIndexes() {
		if err := manager.LoadRegistryEntries(ctx); err != nil {
			log.Error("failed to load persisted registry entries", "err", err)
		}
	}

	deltaHandler := delta.New(typeRegistry, pool, queue, cfg.DeltaBatchSize(), log)

	var workers sync.WaitGroup
	for i := 0; i < cfg.NumberOfThreads(); i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			queue.Run(ctx, updateWorker(manager, reg, typeRegistry, log))
		}()
	}
	go deltaHandler.Run(ctx)
	persisted := make(chan struct{})
	go func() {
		defer close(persisted)
		updatequeue.RunPersister(ctx, queue, store, 5*time.Minute)
	}()

	manager.BuildEagerIndexes(ctx, typeRegistry.All())

	server := httpapi.New(deltaHandler, log)
	httpServer := &http.Server{Addr: *listenAddr, Handler: server.Handler()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	workers.Wait()
	<-persisted
}

// updateWorker adapts the Index Manager + Index Registry into the
// updatequeue.Handler contract of spec.md §4.2's worker handler.
func updateWorker(manager *indexmanager.Manager, reg *registry.Registry, typeRegistry *model.TypeRegistry, log utils.Logger) updatequeue.Handler {
	return func(ctx context.Context, subject string, types map[string]updatequeue.Action) {
		for typeName, action := range types {
			typeDef, ok := typeRegistry.ByName(typeName)
			if !ok {
				continue
			}
			for _, si := range reg.ForTypeName(typeName) {
				if err := applyUpdate(ctx, manager, si, typeDef, subject, action); err != nil {
					log.WarnCtx(ctx, "update handler operation failed", "subject", subject, "type", typeName, "index", si.Name, "err", err)
				}
			}
		}
	}
}

func applyUpdate(ctx context.Context, manager *indexmanager.Manager, si *registry.SearchIndex, typeDef model.TypeDefinition, subject string, action updatequeue.Action) error {
	if action == updatequeue.ActionDelete {
		return manager.RemoveDocument(ctx, si, subject)
	}
	return manager.UpdateDocument(ctx, si, typeDef, subject)
}
