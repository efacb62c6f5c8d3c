package logust

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Size unit multipliers for rotation specs.
const (
	kb = 1024
	mb = kb * 1024
	gb = mb * 1024
	tb = gb * 1024
)

type rotationKind int

const (
	rotateNever rotationKind = iota
	rotateHourly
	rotateDaily
	rotateWeekly
)

// rotationPolicy is a file sink's rollover trigger: a byte threshold, a time
// schedule, or neither. Schedules with an explicit time of day ("daily at
// 12:00") roll at that moment instead of midnight.
type rotationPolicy struct {
	kind     rotationKind
	maxSize  int64
	atHour   int
	atMinute int
	hasAt    bool
}

// retentionPolicy prunes rotated files by count or age. The two modes are
// mutually exclusive.
type retentionPolicy struct {
	count int
	age   time.Duration
}

// parseSize parses "100 bytes", "1 KB", "500MB" and similar into bytes.
func parseSize(s string) (int64, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	if i == 0 {
		return 0, false
	}
	num, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, false
	}

	var mult int64
	switch strings.TrimSpace(s[i:]) {
	case "", "B", "BYTE", "BYTES":
		mult = 1
	case "K", "KB":
		mult = kb
	case "M", "MB":
		mult = mb
	case "G", "GB":
		mult = gb
	case "T", "TB":
		mult = tb
	default:
		return 0, false
	}
	return int64(num * float64(mult)), true
}

// parseRotation parses a rotation spec: "hourly", "daily", "weekly",
// "daily at HH:MM", or a size like "10 MB".
func parseRotation(s string) (rotationPolicy, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	switch trimmed {
	case "":
		return rotationPolicy{}, nil
	case "hourly", "1 hour", "1hour":
		return rotationPolicy{kind: rotateHourly}, nil
	case "daily", "1 day", "1day":
		return rotationPolicy{kind: rotateDaily}, nil
	case "weekly", "1 week", "1week":
		return rotationPolicy{kind: rotateWeekly}, nil
	}

	if rest, ok := strings.CutPrefix(trimmed, "daily at "); ok {
		if t, err := time.Parse("15:04", strings.TrimSpace(rest)); err == nil {
			return rotationPolicy{kind: rotateDaily, atHour: t.Hour(), atMinute: t.Minute(), hasAt: true}, nil
		}
		return rotationPolicy{}, fmt.Errorf("%w: %q", ErrInvalidRotation, s)
	}

	if size, ok := parseSize(trimmed); ok && size > 0 {
		return rotationPolicy{maxSize: size}, nil
	}
	return rotationPolicy{}, fmt.Errorf("%w: %q", ErrInvalidRotation, s)
}

// parseRetention parses a retention spec: a bare count ("5") or an age
// ("10 days").
func parseRetention(s string) (retentionPolicy, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" {
		return retentionPolicy{}, nil
	}

	if strings.Contains(trimmed, "day") {
		digits := strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(trimmed, "days"), "day"))
		if days, err := strconv.Atoi(digits); err == nil && days >= 0 {
			return retentionPolicy{age: time.Duration(days) * 24 * time.Hour}, nil
		}
		return retentionPolicy{}, fmt.Errorf("%w: %q", ErrInvalidRetention, s)
	}

	if count, err := strconv.Atoi(trimmed); err == nil && count >= 0 {
		return retentionPolicy{count: count}, nil
	}
	return retentionPolicy{}, fmt.Errorf("%w: %q", ErrInvalidRetention, s)
}

func (p retentionPolicy) active() bool {
	return p.count > 0 || p.age > 0
}

// nextBoundary computes the next time-based rollover instant after from.
// Returns the zero time when rotation is size-only or disabled.
func (p rotationPolicy) nextBoundary(from time.Time) time.Time {
	switch p.kind {
	case rotateHourly:
		return from.Truncate(time.Hour).Add(time.Hour)
	case rotateDaily:
		day := time.Date(from.Year(), from.Month(), from.Day(), p.atHour, p.atMinute, 0, 0, from.Location())
		if !day.After(from) {
			day = day.AddDate(0, 0, 1)
		}
		return day
	case rotateWeekly:
		day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
		day = day.AddDate(0, 0, 1)
		for day.Weekday() != time.Monday {
			day = day.AddDate(0, 0, 1)
		}
		return day
	default:
		return time.Time{}
	}
}

// maybeRotate rolls the file over when the size threshold or the time
// schedule has elapsed. Time checks are lazy: they run on the next write
// attempt, not on a background timer. Caller must hold s.mu.
func (s *fileSink) maybeRotate() {
	trigger := false
	if s.rotation.maxSize > 0 && s.size >= s.rotation.maxSize {
		trigger = true
	}
	if !s.nextRotation.IsZero() && !time.Now().Before(s.nextRotation) {
		trigger = true
	}
	if !trigger {
		return
	}

	if err := s.rotate(); err != nil {
		// The record that triggered rotation must not be lost: keep
		// appending to the oversized file and surface the failure on the
		// internal warning channel only.
		s.onError(fmt.Errorf("log rotation failed: %w", err))
	}
}

// rotate renames the current file with a timestamp marker, optionally
// compresses it, applies retention, and reopens a fresh file at the original
// path. Caller must hold s.mu.
func (s *fileSink) rotate() error {
	if s.file == nil {
		return fmt.Errorf("log file not open")
	}

	if err := s.file.Close(); err != nil {
		s.reopen()
		return fmt.Errorf("failed to close log file: %w", err)
	}

	rotated := s.rotatedPath(time.Now())
	if err := os.Rename(s.path, rotated); err != nil {
		if reopenErr := s.reopen(); reopenErr != nil {
			return fmt.Errorf("failed to rename log file (%v) and couldn't reopen original (%v)", err, reopenErr)
		}
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	if s.compress {
		if err := compressFile(rotated); err != nil {
			s.onError(fmt.Errorf("log compression failed: %w", err))
		}
	}

	s.applyRetention()

	if err := s.reopen(); err != nil {
		return fmt.Errorf("failed to create new log file: %w", err)
	}
	s.size = 0
	s.nextRotation = s.rotation.nextBoundary(time.Now())
	return nil
}

func (s *fileSink) reopen() error {
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.file = nil
		return err
	}
	s.file = file
	return nil
}

// rotatedPath builds "app.2006-01-02_15-04-05.log" next to the active file,
// appending a sequence number if two rotations land on the same second.
func (s *fileSink) rotatedPath(now time.Time) string {
	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".log"
	}

	stamp := now.Format("2006-01-02_15-04-05")
	candidate := filepath.Join(dir, stem+"."+stamp+ext)
	for seq := 1; ; seq++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			if _, gzErr := os.Stat(candidate + ".gz"); os.IsNotExist(gzErr) {
				return candidate
			}
		}
		candidate = filepath.Join(dir, stem+"."+stamp+"."+strconv.Itoa(seq)+ext)
	}
}

// compressFile gzips a rotated file in a streaming copy and removes the
// uncompressed original on success.
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	src.Close()
	return os.Remove(path)
}

// applyRetention deletes rotated siblings beyond the configured count or
// older than the configured age. Failures to delete are ignored; retention is
// best effort. Caller must hold s.mu.
func (s *fileSink) applyRetention() {
	if !s.retention.active() {
		return
	}

	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type rotatedFile struct {
		path    string
		modTime time.Time
	}
	var rotated []rotatedFile
	for _, e := range entries {
		name := e.Name()
		if name == base || !strings.HasPrefix(name, stem+".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		rotated = append(rotated, rotatedFile{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	sort.Slice(rotated, func(i, j int) bool {
		return rotated[i].modTime.Before(rotated[j].modTime)
	})

	if s.retention.count > 0 && len(rotated) > s.retention.count {
		for _, f := range rotated[:len(rotated)-s.retention.count] {
			os.Remove(f.path)
		}
		return
	}

	if s.retention.age > 0 {
		cutoff := time.Now().Add(-s.retention.age)
		for _, f := range rotated {
			if f.modTime.Before(cutoff) {
				os.Remove(f.path)
			}
		}
	}
}
