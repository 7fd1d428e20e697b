package schema

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type fakeIntrospector struct {
	tables            map[string][]Column
	generation        uint64
	listTablesCalls   int
	listTablesErr     error
	swapsDuringList   []map[string][]Column
	listColumnsErrFor string
}

func (f *fakeIntrospector) ListTables(context.Context) ([]string, error) {
	f.listTablesCalls++
	if f.listTablesErr != nil {
		return nil, f.listTablesErr
	}
	names := make([]string, 0, len(f.tables))
	for name := range f.tables {
		names = append(names, name)
	}
	if len(f.swapsDuringList) > 0 {
		f.tables = f.swapsDuringList[0]
		f.swapsDuringList = f.swapsDuringList[1:]
		f.generation++
	}
	return names, nil
}

func (f *fakeIntrospector) ListColumns(_ context.Context, table string) ([]Column, error) {
	if table == f.listColumnsErrFor {
		return nil, errors.New("permission denied")
	}
	return f.tables[table], nil
}

func (f *fakeIntrospector) Generation() uint64 { return f.generation }

func musicTables() map[string][]Column {
	return map[string][]Column{
		"Artist": {{Name: "ArtistId", Type: "INTEGER"}, {Name: "Name", Type: "VARCHAR"}},
		"Track": {
			{Name: "TrackId", Type: "INTEGER"},
			{Name: "Name", Type: "VARCHAR"},
			{Name: "ArtistId", Type: "INTEGER"},
		},
	}
}

func TestDescribeKeySetMatchesTableListing(t *testing.T) {
	introspector := &fakeIntrospector{tables: musicTables(), generation: 1}
	provider := NewProvider(introspector)

	descriptor, err := provider.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got, want := descriptor.TableNames(), []string{"Artist", "Track"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("TableNames() = %v, want %v", got, want)
	}
	for name, columns := range descriptor.Tables {
		if len(columns) == 0 {
			t.Fatalf("table %q has no columns", name)
		}
	}
	if descriptor.Generation != 1 {
		t.Fatalf("Generation = %d", descriptor.Generation)
	}
}

func TestDescriptorTextListsEveryColumn(t *testing.T) {
	descriptor := Descriptor{Tables: musicTables()}
	want := "Artist(ArtistId INTEGER, Name VARCHAR)\nTrack(TrackId INTEGER, Name VARCHAR, ArtistId INTEGER)"
	if got := descriptor.Text(); got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestDescribeCachesUntilInvalidated(t *testing.T) {
	introspector := &fakeIntrospector{tables: musicTables(), generation: 1}
	provider := NewProvider(introspector)

	for i := 0; i < 3; i++ {
		if _, err := provider.Describe(context.Background()); err != nil {
			t.Fatalf("Describe() error = %v", err)
		}
	}
	if introspector.listTablesCalls != 1 {
		t.Fatalf("ListTables calls = %d, want 1", introspector.listTablesCalls)
	}

	provider.Invalidate()
	if _, err := provider.Describe(context.Background()); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if introspector.listTablesCalls != 2 {
		t.Fatalf("ListTables calls after Invalidate = %d, want 2", introspector.listTablesCalls)
	}
}

func TestDescribeReloadsWhenGenerationChanges(t *testing.T) {
	introspector := &fakeIntrospector{tables: musicTables(), generation: 1}
	provider := NewProvider(introspector)
	if _, err := provider.Describe(context.Background()); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	introspector.tables = map[string][]Column{"Invoice": {{Name: "InvoiceId", Type: "INTEGER"}}}
	introspector.generation = 2

	descriptor, err := provider.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got := descriptor.TableNames(); !reflect.DeepEqual(got, []string{"Invoice"}) {
		t.Fatalf("TableNames() = %v", got)
	}
	if descriptor.Generation != 2 {
		t.Fatalf("Generation = %d", descriptor.Generation)
	}
}

func TestDescribeRereadsWhenConnectionSwappedMidway(t *testing.T) {
	introspector := &fakeIntrospector{
		tables:          musicTables(),
		generation:      1,
		swapsDuringList: []map[string][]Column{{"Invoice": {{Name: "InvoiceId", Type: "INTEGER"}}}},
	}
	provider := NewProvider(introspector)

	descriptor, err := provider.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got := descriptor.TableNames(); !reflect.DeepEqual(got, []string{"Invoice"}) {
		t.Fatalf("TableNames() = %v", got)
	}
	if descriptor.Generation != 2 {
		t.Fatalf("Generation = %d", descriptor.Generation)
	}
}

func TestDescribeWaitsForStableConnection(t *testing.T) {
	introspector := &fakeIntrospector{
		tables:     musicTables(),
		generation: 1,
		swapsDuringList: []map[string][]Column{
			{"Invoice": {{Name: "InvoiceId", Type: "INTEGER"}}},
			{"Customer": {{Name: "CustomerId", Type: "INTEGER"}}},
			{"Employee": {{Name: "EmployeeId", Type: "INTEGER"}}},
		},
	}
	provider := NewProvider(introspector)

	descriptor, err := provider.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got := descriptor.TableNames(); !reflect.DeepEqual(got, []string{"Employee"}) {
		t.Fatalf("TableNames() = %v", got)
	}
	if len(descriptor.Tables["Employee"]) != 1 || descriptor.Generation != 4 {
		t.Fatalf("descriptor = %#v", descriptor)
	}
	if introspector.listTablesCalls != 4 {
		t.Fatalf("ListTables calls = %d, want 4", introspector.listTablesCalls)
	}
}

func TestDescribeGivesUpWhenConnectionNeverSettles(t *testing.T) {
	swaps := make([]map[string][]Column, maxIntrospectionAttempts+1)
	for i := range swaps {
		swaps[i] = musicTables()
	}
	introspector := &fakeIntrospector{tables: musicTables(), generation: 1, swapsDuringList: swaps}
	provider := NewProvider(introspector)

	if _, err := provider.Describe(context.Background()); !errors.Is(err, ErrSchemaUnstable) {
		t.Fatalf("Describe() error = %v, want ErrSchemaUnstable", err)
	}
	if provider.cached != nil {
		t.Fatal("unstable descriptor was cached")
	}
	if introspector.listTablesCalls != maxIntrospectionAttempts {
		t.Fatalf("ListTables calls = %d, want %d", introspector.listTablesCalls, maxIntrospectionAttempts)
	}
}

func TestRefreshForcesRead(t *testing.T) {
	introspector := &fakeIntrospector{tables: musicTables(), generation: 1}
	provider := NewProvider(introspector)
	if _, err := provider.Describe(context.Background()); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if _, err := provider.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if introspector.listTablesCalls != 2 {
		t.Fatalf("ListTables calls = %d, want 2", introspector.listTablesCalls)
	}
}

func TestDescribePropagatesErrorsWithoutCaching(t *testing.T) {
	introspector := &fakeIntrospector{tables: musicTables(), generation: 1, listColumnsErrFor: "Track"}
	provider := NewProvider(introspector)

	_, err := provider.Describe(context.Background())
	if err == nil || !strings.Contains(err.Error(), `list columns for table "Track"`) {
		t.Fatalf("Describe() error = %v", err)
	}

	introspector.listColumnsErrFor = ""
	if _, err := provider.Describe(context.Background()); err != nil {
		t.Fatalf("Describe() after recovery error = %v", err)
	}
	if introspector.listTablesCalls != 2 {
		t.Fatalf("ListTables calls = %d, want 2", introspector.listTablesCalls)
	}
}

func TestDescribeWrapsListTablesError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	provider := NewProvider(&fakeIntrospector{listTablesErr: cause})
	_, err := provider.Describe(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("Describe() error = %v, want wrapped %v", err, cause)
	}
}

func TestDescribeRequiresIntrospector(t *testing.T) {
	if _, err := NewProvider(nil).Describe(context.Background()); !errors.Is(err, ErrIntrospectorRequired) {
		t.Fatalf("Describe() error = %v", err)
	}
}
