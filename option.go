package rotee

import (
	"fmt"
	"log/slog"
	"os"
)

// Default values
const (
	DefaultPermission       = os.FileMode(0600)
	DefaultMaxBackups       = 5
	DefaultFailureThreshold = 3
	DefaultChunkSize        = 4096
)

type option struct {
	permission  os.FileMode
	maxBackups  int
	backupDir   string
	policy      Policy
	rotateEmpty bool
	compress    bool
	logger      *slog.Logger
}

// OptionFunc lets you change Sink behavior.
type OptionFunc func(o *option)

func (o *option) apply(opts ...OptionFunc) error {
	o.permission = DefaultPermission
	o.maxBackups = DefaultMaxBackups
	for _, fn := range opts {
		fn(o)
	}
	if o.maxBackups < 0 {
		return fmt.Errorf("rotee: max backups must not be negative, got %d", o.maxBackups)
	}
	return nil
}

// WithPermission sets the file mode for the active file and its backups.
func WithPermission(v os.FileMode) OptionFunc {
	return func(o *option) {
		o.permission = v
	}
}

// WithMaxBackups bounds how many rotated backups are kept. The oldest backup
// is deleted first once the bound is exceeded. Zero keeps no backups at all:
// rotation then simply truncates the active file.
func WithMaxBackups(v int) OptionFunc {
	return func(o *option) {
		o.maxBackups = v
	}
}

// WithBackupDir places rotated backups in dir instead of next to the active
// file. The directory must be on the same filesystem as the active file for
// the rotation rename to stay atomic.
func WithBackupDir(dir string) OptionFunc {
	return func(o *option) {
		o.backupDir = dir
	}
}

// WithPolicy sets the rotation policy consulted before every write.
// Without a policy the sink only rotates on explicit Rotate calls.
func WithPolicy(p Policy) OptionFunc {
	return func(o *option) {
		o.policy = p
	}
}

// WithRotateEmpty makes explicit Rotate calls rotate even when the active
// file holds no bytes. By default an empty-file rotation is a no-op, so two
// back-to-back rotate signals with no data in between produce one backup.
func WithRotateEmpty(v bool) OptionFunc {
	return func(o *option) {
		o.rotateEmpty = v
	}
}

// WithCompression gzips each backup right after rotation. Compression is
// best-effort: if it fails the uncompressed backup is kept and retention
// still applies to it.
func WithCompression(v bool) OptionFunc {
	return func(o *option) {
		o.compress = v
	}
}

// WithLogger sets the logger for sink diagnostics. Diagnostics are sparse:
// rotation failures and retention pruning only.
func WithLogger(l *slog.Logger) OptionFunc {
	return func(o *option) {
		o.logger = l
	}
}
