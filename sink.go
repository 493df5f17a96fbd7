package rotee

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/roteeio/rotee/internal/file"
	"github.com/roteeio/rotee/internal/logging"
)

// reopenBackoff is the pause before the single retry of opening a fresh
// active file after rotation.
const reopenBackoff = 50 * time.Millisecond

// NewSink opens the active file at path (append mode, creating parent
// directories as needed) and returns a rotating file sink.
func NewSink(path string, opts ...OptionFunc) (*Sink, error) {
	var opt option
	if err := opt.apply(opts...); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("rotee: create parent directory of %s: %w", path, err)
		}
	}
	backupDir := opt.backupDir
	if backupDir == "" {
		backupDir = filepath.Dir(path)
	} else if err := os.MkdirAll(backupDir, 0750); err != nil {
		return nil, fmt.Errorf("rotee: create backup directory %s: %w", backupDir, err)
	}

	f, err := file.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, opt.permission)
	if err != nil {
		return nil, fmt.Errorf("rotee: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("rotee: stat %s: %w", path, err)
	}
	return &Sink{
		f:          f,
		path:       path,
		backupBase: filepath.Join(backupDir, filepath.Base(path)),
		size:       fi.Size(),
		openedAt:   time.Now(),
		opt:        opt,
		logger:     logging.Default(opt.logger).With("component", "sink"),
	}, nil
}

// Sink is a rotating file writer. All mutation of the active file handle and
// the backup sequence happens under a single mutex, so an explicit Rotate
// from a signal handler never interleaves with an in-flight Write.
type Sink struct {
	mu sync.Mutex

	f          *os.File
	path       string
	backupBase string
	size       int64
	openedAt   time.Time
	closed     bool

	opt    option
	logger *slog.Logger
}

// Write implements io.Writer. The rotation policy is consulted first; if it
// triggers, the active file is rotated and the whole chunk goes to the fresh
// file. Writes are synchronous: a nil error means the bytes were handed to
// the OS for the current active file.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.f == nil {
		return 0, ErrSinkUnavailable
	}
	if s.opt.policy != nil && s.size > 0 &&
		s.opt.policy.ShouldRotate(FileState{OpenedAt: s.openedAt, Size: s.size}, len(p)) {
		if err := s.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := s.f.Write(p)
	s.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("rotee: write %s: %w", s.path, err)
	}
	return n, nil
}

// Rotate rotates the active file immediately. It is safe to call
// concurrently with Write. Rotating an empty active file is a no-op unless
// the sink was built with WithRotateEmpty(true).
func (s *Sink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.f == nil {
		return ErrSinkUnavailable
	}
	if s.size == 0 && !s.opt.rotateEmpty {
		return nil
	}
	return s.rotate()
}

// State returns a snapshot of the active file state.
func (s *Sink) State() FileState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FileState{OpenedAt: s.openedAt, Size: s.size}
}

// Path returns the configured active file path. The handle behind it changes
// on every rotation; callers must not cache their own handle to it.
func (s *Sink) Path() string { return s.path }

// Close closes the active file. It is safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// rotate seals the active file into the backup sequence and opens a fresh
// one. Caller holds s.mu.
//
// Order matters: close, rename into the sequence, reopen, prune. If the
// rename fails the old file is reopened in append mode and nothing is lost.
// If the reopen fails after a renamed backup exists, the backup is kept and
// the sink refuses further writes rather than writing into the void.
func (s *Sink) rotate() error {
	if err := s.f.Close(); err != nil {
		s.logger.Warn("closing active file before rotation", "path", s.path, "error", err)
	}
	s.f = nil

	if err := shiftBackups(s.path, s.backupBase, s.opt.maxBackups); err != nil {
		// The active file was not renamed; reopen it and keep appending.
		f, oerr := file.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, s.opt.permission)
		if oerr != nil {
			return fmt.Errorf("rotee: rotate %s: %v (reopen after failed shift: %w)", s.path, err, oerr)
		}
		s.f = f
		return fmt.Errorf("rotee: rotate %s: %w", s.path, err)
	}

	f, err := s.openFresh()
	if err != nil {
		return fmt.Errorf("rotee: open fresh %s after rotation: %w", s.path, err)
	}
	s.f = f
	s.size = 0
	s.openedAt = time.Now()

	if err := pruneBackups(s.backupBase, s.opt.maxBackups, s.logger); err != nil {
		s.logger.Warn("pruning backups", "base", s.backupBase, "error", err)
	}
	if s.opt.compress && s.opt.maxBackups > 0 {
		if err := compressBackup(backupName(s.backupBase, 1), s.opt.permission); err != nil {
			s.logger.Warn("compressing backup", "path", backupName(s.backupBase, 1), "error", err)
		}
	}
	return nil
}

// openFresh creates the new active file, retrying once after a short backoff
// for transient errors such as descriptor exhaustion.
func (s *Sink) openFresh() (*os.File, error) {
	f, err := file.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.opt.permission)
	if err == nil {
		return f, nil
	}
	if !isTransient(err) {
		return nil, err
	}
	s.logger.Warn("transient error opening fresh file, retrying", "path", s.path, "error", err)
	time.Sleep(reopenBackoff)
	return file.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.opt.permission)
}

func backupName(base string, num int) string {
	return fmt.Sprintf("%s.%d", base, num)
}

// slotPath resolves the backup slot num to its on-disk path, accounting for
// compressed backups. Returns "" when the slot is empty.
func slotPath(base string, num int) (string, error) {
	for _, p := range []string{backupName(base, num), backupName(base, num) + ".gz"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("rotee: stat %s: %w", p, err)
		}
	}
	return "", nil
}

// shiftBackups renames the active file into slot 1 of the backup sequence,
// shifting existing numbered backups up by one and removing the oldest once
// keeps is exceeded. Compressed and uncompressed slots shift alike.
//
//	e.g. path "out.log", keeps 3
//	- out.log > out.log.1 | out.log.1 > out.log.2 | out.log.2 > out.log.3 | out.log.3 > remove
//	- out.log > out.log.1 | out.log.1 > out.log.2 |                       | out.log.3 > noop
//	-                     | out.log.1 > noop      | out.log.2 > noop      | out.log.3 > noop
func shiftBackups(active, base string, keeps int) error {
	if _, err := os.Stat(active); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("rotee: stat %s: %w", active, err)
	}
	// Occupied slots, oldest first, then the active file.
	// - [out.log.3 out.log.2 out.log.1 out.log]
	// - [out.log.3 out.log.1 out.log]
	files := make([]string, 0, keeps+1)
	for i := keeps; i > 0; i-- {
		p, err := slotPath(base, i)
		if err != nil {
			return err
		}
		if p != "" {
			files = append(files, p)
		}
	}
	files = append(files, active)
	if len(files) > keeps {
		if err := os.Remove(files[0]); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rotee: remove %s: %w", files[0], err)
		}
		files = files[1:]
	}
	for i, old := range files {
		nw := backupName(base, len(files)-i)
		if filepath.Ext(old) == ".gz" {
			nw += ".gz"
		}
		if err := os.Rename(old, nw); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rotee: rename %s to %s: %w", old, nw, err)
		}
	}
	return nil
}

// backupPattern matches rotated backups of the given base name, capturing
// the slot number.
func backupPattern(base string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(filepath.Base(base)) + `\.([0-9]+)(\.gz)?$`)
}

// listBackups returns the on-disk backup paths for base, newest (slot 1)
// first.
func listBackups(base string) ([]string, error) {
	dir := filepath.Dir(base)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("rotee: list %s: %w", dir, err)
	}
	re := backupPattern(base)
	type numbered struct {
		num  int
		path string
	}
	var found []numbered
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, numbered{num: num, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].num < found[j].num })
	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// pruneBackups deletes backups beyond the retention bound, oldest (highest
// slot number) first. Slots above keeps can linger when the bound was
// lowered between runs.
func pruneBackups(base string, keeps int, logger *slog.Logger) error {
	backups, err := listBackups(base)
	if err != nil {
		return err
	}
	for i := len(backups) - 1; i >= keeps; i-- {
		if err := os.Remove(backups[i]); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rotee: remove %s: %w", backups[i], err)
		}
		logger.Debug("pruned backup", "path", backups[i])
	}
	return nil
}
