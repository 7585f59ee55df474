package gisdb

import (
	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/internal/fs"
	"github.com/hupe1980/gisdb/internal/hash"
)

// DuplicatePolicy decides what AddItem does with a name already added.
type DuplicatePolicy int

const (
	// DuplicateReject makes AddItem return ErrDuplicateName.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateReplace drops the earlier item, keeps the new one and logs a
	// warning.
	DuplicateReplace
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	registry         *Registry
	transformer      geo.Transformer
	duplicates       DuplicatePolicy
	nameHash         func(string) int32
	fsys             fs.FileSystem
}

// Option configures Open, OpenBytes, OpenBlob and NewBuilder.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		transformer:      geo.WGS84{},
		duplicates:       DuplicateReject,
		nameHash:         hash.Name,
		fsys:             fs.Default,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithLogger sets the logger. nil disables logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector. nil disables metrics.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithRegistry sets the registry used to resolve a file's schema.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithSchemas is shorthand for WithRegistry(NewRegistry(schemas...)).
func WithSchemas(schemas ...Schema) Option {
	return WithRegistry(NewRegistry(schemas...))
}

// WithTransformer sets the geodetic to ECEF transform applied to query
// positions and to items added without ECEF coordinates. Defaults to
// geo.WGS84.
func WithTransformer(t geo.Transformer) Option {
	return func(o *options) {
		if t == nil {
			t = geo.WGS84{}
		}
		o.transformer = t
	}
}

// WithDuplicatePolicy sets how the builder treats repeated names.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *options) {
		o.duplicates = p
	}
}

// withNameHash replaces the name hash. A file is only readable with the hash
// it was built with.
func withNameHash(fn func(string) int32) Option {
	return func(o *options) {
		o.nameHash = fn
	}
}

// withFileSystem replaces the file system Build writes through.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}
