package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/querybot/querybot/internal/observability"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Descriptor maps each table name to its columns in declared order.
type Descriptor struct {
	Tables     map[string][]Column
	Generation uint64
}

func (d Descriptor) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for name := range d.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Text renders one line per table, for example "Artist(ArtistId INTEGER, Name VARCHAR)".
func (d Descriptor) Text() string {
	var b strings.Builder
	for i, name := range d.TableNames() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		b.WriteByte('(')
		for j, column := range d.Tables[name] {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(column.Name)
			if column.Type != "" {
				b.WriteByte(' ')
				b.WriteString(column.Type)
			}
		}
		b.WriteByte(')')
	}
	return b.String()
}

type Introspector interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]Column, error)
	// Generation changes every time the underlying connection is replaced.
	Generation() uint64
}

var (
	ErrIntrospectorRequired = errors.New("schema introspector is required")
	ErrSchemaUnstable       = errors.New("database connection kept changing during schema introspection")
)

const maxIntrospectionAttempts = 5

// Provider caches the descriptor of the current connection generation.
type Provider struct {
	introspector Introspector

	mu     sync.Mutex
	cached *Descriptor
}

func NewProvider(introspector Introspector) *Provider {
	return &Provider{introspector: introspector}
}

func (p *Provider) Describe(ctx context.Context) (Descriptor, error) {
	if p.introspector == nil {
		return Descriptor{}, ErrIntrospectorRequired
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.cached.Generation == p.introspector.Generation() {
		return *p.cached, nil
	}
	return p.load(ctx)
}

// Refresh discards the cached descriptor and reads the schema again.
func (p *Provider) Refresh(ctx context.Context) (Descriptor, error) {
	if p.introspector == nil {
		return Descriptor{}, ErrIntrospectorRequired
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
	return p.load(ctx)
}

func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// load must be called with p.mu held. A descriptor is only kept when the
// connection generation was the same before and after reading it.
func (p *Provider) load(ctx context.Context) (Descriptor, error) {
	var (
		descriptor Descriptor
		err        error
	)
	for attempt := 0; ; attempt++ {
		if attempt == maxIntrospectionAttempts {
			err = ErrSchemaUnstable
			break
		}
		descriptor, err = introspect(ctx, p.introspector)
		if err != nil || descriptor.Generation == p.introspector.Generation() {
			break
		}
	}
	observability.ObserveSchemaIntrospection(err)
	if err != nil {
		return Descriptor{}, err
	}
	p.cached = &descriptor
	return descriptor, nil
}

func introspect(ctx context.Context, introspector Introspector) (Descriptor, error) {
	generation := introspector.Generation()
	tables, err := introspector.ListTables(ctx)
	if err != nil {
		return Descriptor{}, fmt.Errorf("list tables: %w", err)
	}
	descriptor := Descriptor{Tables: make(map[string][]Column, len(tables)), Generation: generation}
	for _, table := range tables {
		columns, err := introspector.ListColumns(ctx, table)
		if err != nil {
			return Descriptor{}, fmt.Errorf("list columns for table %q: %w", table, err)
		}
		descriptor.Tables[table] = columns
	}
	return descriptor, nil
}
