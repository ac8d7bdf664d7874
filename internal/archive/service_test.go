package archive_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"chatvault/internal/archive"
	"chatvault/internal/testutil"
)

func entryAt(channel string, id int64, content string, ts time.Time) archive.Entry {
	return archive.Entry{
		ChannelName: channel,
		MessageID:   id,
		Author:      "@alice",
		Content:     content,
		Timestamp:   ts,
		Kind:        archive.EventMessage,
	}
}

func setMode(t *testing.T, svc *archive.Service, guildID int64, mode archive.ExportMode) archive.GuildConfig {
	t.Helper()
	cfg, err := svc.UpdateConfig(guildID, archive.ConfigUpdate{ExportMode: &mode})
	if err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	return cfg
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return string(data)
}

func TestAppendEntry_SingleMode(t *testing.T) {
	svc, _, root := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1234, archive.ModeSingle)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	path, err := svc.AppendEntry(context.Background(), cfg, entryAt("general", 42, "hello", ts))
	if err != nil {
		t.Fatalf("AppendEntry() error = %v", err)
	}

	wantPath := filepath.Join(root, "1234", "vaults", "general.md")
	if path != wantPath {
		t.Errorf("AppendEntry() path = %q, want %q", path, wantPath)
	}

	want := "---\n" +
		"channel: general\n" +
		"server: 1234\n" +
		"period: all\n" +
		"export_mode: single\n" +
		"generated_on: 2024-06-01T09:00:00Z\n" +
		"---\n\n" +
		"### 2024-03-01 12:00 @alice\n" +
		"hello\n" +
		"- Message ID: 42\n" +
		"- Event: message\n\n"
	if got := readFile(t, path); got != want {
		t.Errorf("file content = %q, want %q", got, want)
	}
}

func TestAppendEntry_HeaderOnce(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeMonthly)
	ctx := context.Background()

	base := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	var path string
	for i := 0; i < 5; i++ {
		p, err := svc.AppendEntry(ctx, cfg, entryAt("general", int64(i+1), fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Hour)))
		if err != nil {
			t.Fatalf("AppendEntry(%d) error = %v", i, err)
		}
		if path != "" && p != path {
			t.Fatalf("AppendEntry(%d) path = %q, want %q", i, p, path)
		}
		path = p
	}

	content := readFile(t, path)
	if n := strings.Count(content, "generated_on:"); n != 1 {
		t.Errorf("header count = %d, want 1", n)
	}
	if !strings.HasPrefix(content, "---\nchannel: general\n") {
		t.Errorf("file does not start with header: %q", content[:min(40, len(content))])
	}

	last := -1
	for i := 0; i < 5; i++ {
		idx := strings.Index(content, fmt.Sprintf("msg-%d\n", i))
		if idx < 0 {
			t.Fatalf("msg-%d missing from file", i)
		}
		if idx < last {
			t.Errorf("msg-%d out of order", i)
		}
		last = idx
	}
}

func TestAppendEntry_RecreatesPurgedFile(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeSingle)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := svc.AppendEntry(ctx, cfg, entryAt("general", 1, "first", ts))
	if err != nil {
		t.Fatalf("AppendEntry() error = %v", err)
	}
	if _, err := svc.Purge(cfg, ""); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if _, err := svc.AppendEntry(ctx, cfg, entryAt("general", 2, "second", ts)); err != nil {
		t.Fatalf("AppendEntry() error = %v", err)
	}

	content := readFile(t, path)
	if strings.Contains(content, "first") {
		t.Error("purged entry reappeared")
	}
	if n := strings.Count(content, "generated_on:"); n != 1 {
		t.Errorf("header count = %d, want 1", n)
	}
}

func TestAppendEntry_Errors(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("invalid timezone", func(t *testing.T) {
		cfg := archive.NewGuildConfig(1)
		cfg.Timezone = "Mars/Olympus"
		_, err := svc.AppendEntry(context.Background(), cfg, entryAt("general", 1, "x", ts))
		if !errors.Is(err, archive.ErrInvalidTimezone) {
			t.Errorf("AppendEntry() error = %v, want ErrInvalidTimezone", err)
		}
	})

	t.Run("vault path escapes guild", func(t *testing.T) {
		cfg := archive.NewGuildConfig(1)
		cfg.VaultPath = "../../elsewhere"
		_, err := svc.AppendEntry(context.Background(), cfg, entryAt("general", 1, "x", ts))
		if !errors.Is(err, archive.ErrPathEscapesVault) {
			t.Errorf("AppendEntry() error = %v, want ErrPathEscapesVault", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.AppendEntry(ctx, archive.NewGuildConfig(1), entryAt("general", 1, "x", ts))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("AppendEntry() error = %v, want context.Canceled", err)
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		svc, _, root := testutil.NewTestService(t)
		cfg := setMode(t, svc, 5, archive.ModeDaily)
		// A regular file where the channel directory should be.
		vault := filepath.Join(root, "5", "vaults")
		if err := os.MkdirAll(vault, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(vault, "general"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := svc.AppendEntry(context.Background(), cfg, entryAt("general", 1, "x", ts))
		var storageErr *archive.StorageError
		if !errors.As(err, &storageErr) {
			t.Errorf("AppendEntry() error = %v, want *StorageError", err)
		}
	})
}

func TestAppendEntry_Concurrent(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeSingle)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AppendEntry(context.Background(), cfg, entryAt("general", int64(i), fmt.Sprintf("m%d", i), ts)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("AppendEntry() error = %v", err)
	}

	path, err := svc.FilePath(cfg, entryAt("general", 0, "", ts))
	if err != nil {
		t.Fatalf("FilePath() error = %v", err)
	}
	content := readFile(t, path)
	if c := strings.Count(content, "generated_on:"); c != 1 {
		t.Errorf("header count = %d, want 1", c)
	}
	if c := strings.Count(content, "- Event: message\n"); c != n {
		t.Errorf("entry count = %d, want %d", c, n)
	}
}

func TestIngest(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	include := []int64{10}
	if _, err := svc.UpdateConfig(1, archive.ConfigUpdate{IncludeChannels: &include}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	path, archived, err := svc.Ingest(context.Background(), 1, 10, entryAt("general", 1, "kept", ts))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !archived || path == "" {
		t.Errorf("Ingest() = (%q, %v), want archived", path, archived)
	}

	path, archived, err = svc.Ingest(context.Background(), 1, 11, entryAt("random", 2, "dropped", ts))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if archived || path != "" {
		t.Errorf("Ingest() = (%q, %v), want filtered", path, archived)
	}
}

func TestUpdateConfig_RejectsInvalidTimezone(t *testing.T) {
	svc, store, _ := testutil.NewTestService(t)
	tz := "Nowhere/Special"
	if _, err := svc.UpdateConfig(1, archive.ConfigUpdate{Timezone: &tz}); !errors.Is(err, archive.ErrInvalidTimezone) {
		t.Fatalf("UpdateConfig() error = %v, want ErrInvalidTimezone", err)
	}
	if got := store.Get(1).Timezone; got != "UTC" {
		t.Errorf("Timezone = %q, want UTC", got)
	}
}

// seed writes one entry per (channel, day) under a daily-mode guild.
func seed(t *testing.T, svc *archive.Service, cfg archive.GuildConfig, channels []string, days []time.Time) {
	t.Helper()
	for i, ch := range channels {
		for j, d := range days {
			content := fmt.Sprintf("%s says Hello on day %d", ch, j)
			if _, err := svc.AppendEntry(context.Background(), cfg, entryAt(ch, int64(i*100+j), content, d)); err != nil {
				t.Fatalf("AppendEntry() error = %v", err)
			}
		}
	}
}

func relAll(svc *archive.Service, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = svc.Rel(p)
	}
	sort.Strings(out)
	return out
}

func TestListFiles(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeDaily)

	paths, err := svc.ListFiles(cfg)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("ListFiles() on empty vault = %v, want none", paths)
	}

	days := []time.Time{
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	}
	seed(t, svc, cfg, []string{"general", "random"}, days)

	paths, err = svc.ListFiles(cfg)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	want := []string{
		"1/vaults/general/2024-01-01.md",
		"1/vaults/general/2024-01-02.md",
		"1/vaults/random/2024-01-01.md",
		"1/vaults/random/2024-01-02.md",
	}
	if got := relAll(svc, paths); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ListFiles() = %v, want %v", got, want)
	}

	// Other guilds are not listed.
	other := setMode(t, svc, 2, archive.ModeDaily)
	paths, err = svc.ListFiles(other)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("ListFiles() for other guild = %v, want none", paths)
	}
}

func TestSearch(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeSingle)
	ctx := context.Background()
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for _, e := range []archive.Entry{
		entryAt("general", 1, "Deploy went FINE", ts),
		entryAt("random", 2, "lunch?", ts),
		entryAt("ops", 3, "Café closed", ts),
	} {
		if _, err := svc.AppendEntry(ctx, cfg, e); err != nil {
			t.Fatalf("AppendEntry() error = %v", err)
		}
	}

	tests := []struct {
		keyword string
		want    []string
	}{
		{keyword: "fine", want: []string{"1/vaults/general.md"}},
		{keyword: "LUNCH", want: []string{"1/vaults/random.md"}},
		{keyword: "CAFÉ", want: []string{"1/vaults/ops.md"}},
		{keyword: "nothing-like-this", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			got, err := svc.Search(ctx, cfg, tt.keyword)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if rels := relAll(svc, got); strings.Join(rels, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Search(%q) = %v, want %v", tt.keyword, rels, tt.want)
			}
		})
	}

	t.Run("invalid utf-8 is tolerated", func(t *testing.T) {
		dir, err := svc.VaultDir(cfg)
		if err != nil {
			t.Fatal(err)
		}
		bad := []byte("---\n\xff\xfe needle here\n")
		if err := os.WriteFile(filepath.Join(dir, "broken.md"), bad, 0644); err != nil {
			t.Fatal(err)
		}
		got, err := svc.Search(ctx, cfg, "NEEDLE")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if rels := relAll(svc, got); len(rels) != 1 || rels[0] != "1/vaults/broken.md" {
			t.Errorf("Search() = %v, want [1/vaults/broken.md]", rels)
		}
	})
}

func TestFilter(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeDaily)
	days := []time.Time{
		time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	seed(t, svc, cfg, []string{"general", "random"}, days)

	paths, err := svc.ListFiles(cfg)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}

	tests := []struct {
		name   string
		filter archive.FileFilter
		want   []string
	}{
		{
			name:   "no filter",
			filter: archive.FileFilter{},
			want: []string{
				"1/vaults/general/2024-01-31.md", "1/vaults/general/2024-02-01.md",
				"1/vaults/random/2024-01-31.md", "1/vaults/random/2024-02-01.md",
			},
		},
		{
			name:   "channel",
			filter: archive.FileFilter{Channel: "general"},
			want:   []string{"1/vaults/general/2024-01-31.md", "1/vaults/general/2024-02-01.md"},
		},
		{
			name:   "date",
			filter: archive.FileFilter{Date: "2024-02"},
			want:   []string{"1/vaults/general/2024-02-01.md", "1/vaults/random/2024-02-01.md"},
		},
		{
			name:   "pattern",
			filter: archive.FileFilter{Patterns: []string{"random/*"}},
			want:   []string{"1/vaults/random/2024-01-31.md", "1/vaults/random/2024-02-01.md"},
		},
		{
			name:   "channel and date",
			filter: archive.FileFilter{Channel: "random", Date: "2024-01-31"},
			want:   []string{"1/vaults/random/2024-01-31.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Filter(cfg, paths, tt.filter)
			if err != nil {
				t.Fatalf("Filter() error = %v", err)
			}
			if rels := relAll(svc, got); strings.Join(rels, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Filter() = %v, want %v", rels, tt.want)
			}
		})
	}
}

func TestBundle(t *testing.T) {
	svc, _, root := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeDaily)
	seed(t, svc, cfg, []string{"general"}, []time.Time{time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)})

	paths, err := svc.ListFiles(cfg)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}

	var buf bytes.Buffer
	if err := svc.Bundle(context.Background(), paths, &buf); err != nil {
		t.Fatalf("Bundle() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	if len(zr.File) != 1 {
		t.Fatalf("bundle has %d entries, want 1", len(zr.File))
	}
	if name := zr.File[0].Name; name != "1/vaults/general/2024-01-01.md" {
		t.Errorf("entry name = %q, want 1/vaults/general/2024-01-01.md", name)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if want := readFile(t, filepath.Join(root, "1", "vaults", "general", "2024-01-01.md")); string(got) != want {
		t.Errorf("entry content = %q, want %q", got, want)
	}

	t.Run("rejects paths outside root", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "x.md")
		if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		err := svc.Bundle(context.Background(), []string{outside}, io.Discard)
		if !errors.Is(err, archive.ErrPathEscapesVault) {
			t.Errorf("Bundle() error = %v, want ErrPathEscapesVault", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		err := svc.Bundle(context.Background(), []string{filepath.Join(root, "1", "gone.md")}, io.Discard)
		var storageErr *archive.StorageError
		if !errors.As(err, &storageErr) {
			t.Errorf("Bundle() error = %v, want *StorageError", err)
		}
	})
}

func TestPurge(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeDaily)
	days := []time.Time{
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	}
	seed(t, svc, cfg, []string{"general", "random"}, days)

	n, err := svc.Purge(cfg, "general")
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Purge(general) = %d, want 2", n)
	}

	paths, err := svc.ListFiles(cfg)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	for _, rel := range relAll(svc, paths) {
		if !strings.Contains(rel, "/random/") {
			t.Errorf("unexpected file after channel purge: %s", rel)
		}
	}

	n, err = svc.Purge(cfg, "general")
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second Purge(general) = %d, want 0", n)
	}

	n, err = svc.Purge(cfg, "")
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Purge(all) = %d, want 2", n)
	}
}

func TestPurge_SingleMode(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeSingle)
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	seed(t, svc, cfg, []string{"general", "random"}, []time.Time{ts})

	n, err := svc.Purge(cfg, "#general")
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Purge(#general) = %d, want 1", n)
	}
}

func TestPurge_DateNamedChannel(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeMonthly)
	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	seed(t, svc, cfg, []string{"general", "2024-03"}, []time.Time{ts})

	paths, err := svc.ListFiles(cfg)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	got, err := svc.Filter(cfg, paths, archive.FileFilter{Channel: "2024-03"})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if rels := relAll(svc, got); len(rels) != 1 || rels[0] != "1/vaults/2024-03/2024-03.md" {
		t.Errorf("Filter(2024-03) = %v, want only the 2024-03 channel file", rels)
	}

	n, err := svc.Purge(cfg, "2024-03")
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Purge(2024-03) = %d, want 1", n)
	}

	paths, err = svc.ListFiles(cfg)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if rels := relAll(svc, paths); len(rels) != 1 || rels[0] != "1/vaults/general/2024-03.md" {
		t.Errorf("files after purge = %v, want [1/vaults/general/2024-03.md]", rels)
	}
}

func TestClearCache(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := archive.NewGuildConfig(1)

	if err := svc.ClearCache(cfg); err != nil {
		t.Fatalf("ClearCache() on missing cache error = %v", err)
	}

	dir, err := svc.VaultDir(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cache := filepath.Join(dir, ".cache", "thumbs")
	if err := os.MkdirAll(cache, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cache, "a.bin"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := svc.ClearCache(cfg); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".cache")); !os.IsNotExist(err) {
		t.Errorf(".cache still exists: %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, _, _ := testutil.NewTestService(t)
	cfg := setMode(t, svc, 1, archive.ModeDaily)

	stats, err := svc.Stats(cfg)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Files != 0 || stats.Bytes != 0 {
		t.Errorf("Stats() on empty vault = %+v, want zero", stats)
	}

	seed(t, svc, cfg, []string{"general"}, []time.Time{
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	})
	paths, err := svc.ListFiles(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var want int64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatal(err)
		}
		want += info.Size()
	}

	stats, err = svc.Stats(cfg)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Files != 2 || stats.Bytes != want || stats.VaultPath != "vaults" {
		t.Errorf("Stats() = %+v, want {vaults 2 %d}", stats, want)
	}
}
