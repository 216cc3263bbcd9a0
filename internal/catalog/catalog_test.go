package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_RecordAndGet(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	entry := &Entry{
		Path:        "/library/a.jpg",
		Filename:    "a.jpg",
		Status:      StatusIndexed,
		SizeBytes:   1234,
		ModTimeUnix: 1700000000,
	}
	if err := c.Record(ctx, entry); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "/library/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != StatusIndexed || got.SizeBytes != 1234 {
		t.Errorf("unexpected entry: %+v", got)
	}

	unknown, err := c.Get(ctx, "/library/unknown.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if unknown != nil {
		t.Errorf("unknown path should return nil, got %+v", unknown)
	}
}

func TestCatalog_RecordUpsert(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	e := &Entry{Path: "/library/a.jpg", Filename: "a.jpg", Status: StatusFailed, Error: "no face"}
	if err := c.Record(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Status = StatusIndexed
	e.Error = ""
	e.SizeBytes = 99
	if err := c.Record(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "/library/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusIndexed || got.SizeBytes != 99 {
		t.Errorf("upsert did not replace: %+v", got)
	}
}

func TestCatalog_IsUnchanged(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	e := &Entry{Path: "/p.jpg", Filename: "p.jpg", Status: StatusIndexed, SizeBytes: 10, ModTimeUnix: 100}
	if err := c.Record(ctx, e); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		size int64
		mod  int64
		want bool
	}{
		{"same", 10, 100, true},
		{"size changed", 11, 100, false},
		{"mtime changed", 10, 101, false},
	}
	for _, tc := range cases {
		got, err := c.IsUnchanged(ctx, "/p.jpg", tc.size, tc.mod)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("%s: IsUnchanged = %v, want %v", tc.name, got, tc.want)
		}
	}

	// Failed entries are never "unchanged": a retry should happen.
	f := &Entry{Path: "/f.jpg", Filename: "f.jpg", Status: StatusFailed, SizeBytes: 10, ModTimeUnix: 100}
	if err := c.Record(ctx, f); err != nil {
		t.Fatal(err)
	}
	got, err := c.IsUnchanged(ctx, "/f.jpg", 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("failed entry should not count as unchanged")
	}
}

func TestCatalog_MarkStaleAndCounts(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	for _, p := range []string{"/a.jpg", "/b.jpg"} {
		if err := c.Record(ctx, &Entry{Path: p, Filename: filepath.Base(p), Status: StatusIndexed}); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.MarkStale(ctx, "/a.jpg"); err != nil {
		t.Fatal(err)
	}
	counts, err := c.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[StatusIndexed] != 1 || counts[StatusStale] != 1 {
		t.Errorf("counts = %v", counts)
	}

	if err := c.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	counts, err = c.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 0 {
		t.Errorf("counts after reset = %v", counts)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f"), make([]byte, 100), 0600); err != nil {
		t.Fatal(err)
	}
	n, err := DiskUsageBytes(dir, filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 100 {
		t.Errorf("DiskUsageBytes = %d, want 100", n)
	}
}
