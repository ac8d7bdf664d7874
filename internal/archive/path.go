package archive

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Sanitize turns a channel name into a filesystem-safe slug.
// Runs of characters outside [A-Za-z0-9_.-] collapse to a single '-',
// leading and trailing '-' are trimmed, and an empty result becomes "untitled".
// Sanitize is idempotent.
func Sanitize(name string) string {
	cleaned := strings.Trim(unsafeRun.ReplaceAllString(name, "-"), "-")
	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}

// LoadLocation resolves an IANA timezone name.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// ResolvePath maps an event to its archive file, relative to the guild's
// vault directory. It has no side effects: the same inputs always give the
// same path.
func ResolvePath(cfg GuildConfig, channelName string, ts time.Time) (string, error) {
	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return "", err
	}
	local := ts.In(loc)
	slug := Sanitize(channelName)

	var rel string
	switch cfg.ExportMode {
	case ModeSingle:
		rel = slug + ".md"
	case ModeDaily:
		rel = filepath.Join(slug, local.Format("2006-01-02")+".md")
	case ModeMonthly:
		rel = filepath.Join(slug, local.Format("2006-01")+".md")
	case ModeCustom:
		days := max(1, cfg.CustomPeriodDays)
		start := BucketStart(local, days)
		rel = filepath.Join(slug, fmt.Sprintf("%s_d%d.md", start.Format("2006-01-02"), days))
	default:
		rel = renderTemplate(cfg.FilenameTemplate, slug, local)
	}

	if escapes(rel) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesVault, rel)
	}
	return rel, nil
}

// escapes reports whether a cleaned relative path leaves its base directory.
func escapes(rel string) bool {
	return filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// BucketStart returns the first local day of the custom-period bucket that
// contains t. Buckets are counted from the day of year, so the last bucket
// of a year is cut short and January 1st belongs to a bucket starting in
// the previous December whenever days > 1.
func BucketStart(t time.Time, days int) time.Time {
	days = max(1, days)
	offset := t.YearDay() % days
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

func renderTemplate(tmpl, slug string, local time.Time) string {
	r := strings.NewReplacer(
		"{channel}", slug,
		"{year}", local.Format("2006"),
		"{month}", local.Format("01"),
		"{day}", local.Format("02"),
	)
	rel := filepath.Clean(filepath.FromSlash(r.Replace(tmpl)))
	if rel == "." {
		rel = slug
	}
	if filepath.Ext(rel) == "" {
		rel += ".md"
	}
	return rel
}

// PeriodLabel describes the bucket a file covers, for its header.
func PeriodLabel(mode ExportMode, local time.Time) string {
	switch mode {
	case ModeSingle:
		return "all"
	case ModeDaily:
		return local.Format("2006-01-02")
	case ModeMonthly:
		return local.Format("2006-01")
	default:
		return "varies"
	}
}
