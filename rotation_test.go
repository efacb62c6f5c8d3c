package logust

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"100 bytes", 100, true},
		{"100", 100, true},
		{"1 KB", kb, true},
		{"10MB", 10 * mb, true},
		{"1.5 GB", int64(1.5 * float64(gb)), true},
		{"2 TB", 2 * tb, true},
		{"1 kb", kb, true},
		{"", 0, false},
		{"abc", 0, false},
		{"10 lightyears", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseSize(tt.in)
		assert.Equal(t, tt.ok, ok, "parseSize(%q)", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "parseSize(%q)", tt.in)
		}
	}
}

func TestParseRotation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    rotationPolicy
		wantErr bool
	}{
		{"Empty", "", rotationPolicy{}, false},
		{"Hourly", "hourly", rotationPolicy{kind: rotateHourly}, false},
		{"Daily", "Daily", rotationPolicy{kind: rotateDaily}, false},
		{"Weekly", "weekly", rotationPolicy{kind: rotateWeekly}, false},
		{"DailyAt", "daily at 14:30", rotationPolicy{kind: rotateDaily, atHour: 14, atMinute: 30, hasAt: true}, false},
		{"Size", "100 bytes", rotationPolicy{maxSize: 100}, false},
		{"SizeMB", "10 MB", rotationPolicy{maxSize: 10 * mb}, false},
		{"BadDailyAt", "daily at noonish", rotationPolicy{}, true},
		{"Garbage", "fortnightly", rotationPolicy{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRotation(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRotation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRetention(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    retentionPolicy
		wantErr bool
	}{
		{"Empty", "", retentionPolicy{}, false},
		{"Count", "5", retentionPolicy{count: 5}, false},
		{"Days", "10 days", retentionPolicy{age: 10 * 24 * time.Hour}, false},
		{"OneDay", "1 day", retentionPolicy{age: 24 * time.Hour}, false},
		{"BadCount", "-2", retentionPolicy{}, true},
		{"Garbage", "forever", retentionPolicy{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRetention(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRetention)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextBoundary(t *testing.T) {
	t.Parallel()

	// 2025-01-01 is a Wednesday.
	from := time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		policy rotationPolicy
		want   time.Time
	}{
		{"Hourly", rotationPolicy{kind: rotateHourly}, time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)},
		{"DailyMidnight", rotationPolicy{kind: rotateDaily}, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"DailyAtLaterToday", rotationPolicy{kind: rotateDaily, atHour: 14, atMinute: 30, hasAt: true}, time.Date(2025, 1, 1, 14, 30, 0, 0, time.UTC)},
		{"DailyAtAlreadyPassed", rotationPolicy{kind: rotateDaily, atHour: 9, hasAt: true}, time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)},
		{"WeeklyNextMonday", rotationPolicy{kind: rotateWeekly}, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)},
		{"SizeOnlyNoBoundary", rotationPolicy{maxSize: 100}, time.Time{}},
		{"NoRotation", rotationPolicy{}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.nextBoundary(from))
		})
	}
}

func TestRotatedPathSequence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := &fileSink{path: filepath.Join(dir, "app.log")}
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	first := s.rotatedPath(now)
	assert.Equal(t, filepath.Join(dir, "app.2025-03-04_05-06-07.log"), first)

	// A rotation landing on the same second gets a sequence suffix.
	require.NoError(t, os.WriteFile(first, nil, 0644))
	second := s.rotatedPath(now)
	assert.Equal(t, filepath.Join(dir, "app.2025-03-04_05-06-07.1.log"), second)

	// A compressed leftover also blocks the name.
	require.NoError(t, os.WriteFile(second+".gz", nil, 0644))
	third := s.rotatedPath(now)
	assert.Equal(t, filepath.Join(dir, "app.2025-03-04_05-06-07.2.log"), third)
}

func TestSizeRotationSplitsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rot.log")
	rotation, err := parseRotation("100 bytes")
	require.NoError(t, err)

	s, err := newFileSink(path, rotation, retentionPolicy{}, false, false, func(error) {})
	require.NoError(t, err)
	defer s.close()

	line := strings.Repeat("x", 60)
	s.writeLine(line) // 61 bytes
	s.writeLine(line) // 122 bytes, over the limit
	s.writeLine(line) // rotates first, then writes

	rotated, err := filepath.Glob(filepath.Join(dir, "rot.*.log"))
	require.NoError(t, err)
	require.Len(t, rotated, 1)

	old, err := os.ReadFile(rotated[0])
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(old), "\n"))

	active, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(active), "\n"))
}

func TestRotationCompressesOldFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "gz.log")
	rotation, err := parseRotation("50 bytes")
	require.NoError(t, err)

	s, err := newFileSink(path, rotation, retentionPolicy{}, true, false, func(error) {})
	require.NoError(t, err)
	defer s.close()

	s.writeLine("first " + strings.Repeat("a", 54))
	s.writeLine("second line")

	compressed, err := filepath.Glob(filepath.Join(dir, "gz.*.log.gz"))
	require.NoError(t, err)
	require.Len(t, compressed, 1)

	// The plain rotated file is removed after compression.
	plain, err := filepath.Glob(filepath.Join(dir, "gz.*.log"))
	require.NoError(t, err)
	assert.Empty(t, plain)

	f, err := os.Open(compressed[0])
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	content, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "first "))
}

func TestRetentionCountPrunesOldest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "keep.log")
	rotation, err := parseRotation("50 bytes")
	require.NoError(t, err)
	retention, err := parseRetention("1")
	require.NoError(t, err)

	s, err := newFileSink(path, rotation, retention, false, false, func(error) {})
	require.NoError(t, err)
	defer s.close()

	line := strings.Repeat("y", 60)
	s.writeLine(line)
	s.writeLine(line) // first rotation
	s.writeLine(line) // second rotation prunes the first backup

	rotated, err := filepath.Glob(filepath.Join(dir, "keep.*.log"))
	require.NoError(t, err)
	assert.Len(t, rotated, 1)
}

func TestRetentionAgePrunes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "aged.log")

	stale := filepath.Join(dir, "aged.2020-01-01_00-00-00.log")
	require.NoError(t, os.WriteFile(stale, []byte("old\n"), 0644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	fresh := filepath.Join(dir, "aged.2099-01-01_00-00-00.log")
	require.NoError(t, os.WriteFile(fresh, []byte("new\n"), 0644))

	retention, err := parseRetention("1 day")
	require.NoError(t, err)
	s, err := newFileSink(path, rotationPolicy{}, retention, false, false, func(error) {})
	require.NoError(t, err)
	defer s.close()

	s.mu.Lock()
	s.applyRetention()
	s.mu.Unlock()

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale backup should be pruned")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "recent backup should survive")
}

func TestRotationFailureKeepsWriting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "stuck.log")
	rotation, err := parseRotation("10 bytes")
	require.NoError(t, err)

	var reported []error
	s, err := newFileSink(path, rotation, retentionPolicy{}, false, false, func(e error) {
		reported = append(reported, e)
	})
	require.NoError(t, err)
	defer s.close()

	// Sabotage the rotation: closing the handle out from under the sink makes
	// the close inside rotate fail, which reopens the file and reports the
	// error instead of dropping the record.
	s.mu.Lock()
	s.file.Close()
	s.size = 20
	s.mu.Unlock()

	s.writeLine("still logging")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "still logging")
	assert.NotEmpty(t, reported)
}
