package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// maxValueBytes caps a single non-file form value.
const maxValueBytes = 1 << 20

// Settings are the host limits enforced while receiving a request.
type Settings struct {
	Enabled           bool
	WorkingPath       string
	SystemMaxBytes    int64 // <= 0 means unlimited
	MaxFileUploads    int   // <= 0 means unlimited
	BlockedExtensions []string
	Logger            *slog.Logger
}

// Channel is the host upload channel. It streams a multipart request body to
// temporary files and records the bookkeeping structure the way the host
// does: per-file status codes, nested attribute trees for array-style names.
// Every temporary path it writes is remembered, which makes it the Verifier
// for the descriptor it produced.
type Channel struct {
	settings Settings
	log      *slog.Logger

	mu       sync.Mutex
	uploaded map[string]struct{}
	formMax  int64
	files    int
	indexes  map[string]int
}

// NewChannel creates a channel for one request.
func NewChannel(s Settings) *Channel {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		settings: s,
		log:      log,
		uploaded: make(map[string]struct{}),
		formMax:  math.MaxInt64,
		indexes:  make(map[string]int),
	}
}

// Receive reads the multipart body of r and returns the resulting descriptor.
// A body truncated mid-file yields a Partial status for that file rather
// than an error.
func (c *Channel) Receive(r *http.Request) (*Descriptor, error) {
	if !c.settings.Enabled {
		return nil, ErrDisabled
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("reading multipart body: %w", err)
	}

	d := NewDescriptor()
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				c.log.Warn("multipart body ended early", "files", c.files)
				break
			}
			return nil, fmt.Errorf("reading multipart part: %w", err)
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if !hasFilename(part) {
			if err := c.receiveValue(name, part); err != nil {
				return nil, err
			}
			continue
		}

		attrs, truncated, ok := c.receiveFile(part)
		if ok {
			d.put(c.fieldPath(name), attrs)
		}
		if truncated {
			break
		}
	}
	return d, nil
}

// receiveValue consumes a non-file part. Only MAX_FILE_SIZE is kept.
func (c *Channel) receiveValue(name string, part *multipart.Part) error {
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, maxValueBytes))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		return fmt.Errorf("reading form value %q: %w", name, err)
	}
	if name != "MAX_FILE_SIZE" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); err == nil && n > 0 {
		c.formMax = n
	} else {
		c.formMax = math.MaxInt64
	}
	return nil
}

// receiveFile stores one file part. ok is false when the part was dropped
// because too many files were sent; truncated is true when the body ended
// inside this part.
func (c *Channel) receiveFile(part *multipart.Part) (a Attributes, truncated bool, ok bool) {
	defer part.Close()

	a = Attributes{Name: part.FileName(), Type: part.Header.Get("Content-Type")}
	if a.Name == "" {
		a.Type = ""
		a.Error = CodeNoFile
		return a, drain(part), true
	}

	c.mu.Lock()
	if maxFiles := c.settings.MaxFileUploads; maxFiles > 0 && c.files >= maxFiles {
		c.mu.Unlock()
		c.log.Warn("dropping file beyond max_file_uploads", "field", part.FormName(), "max", maxFiles)
		return Attributes{}, drain(part), false
	}
	c.files++
	formMax := c.formMax
	c.mu.Unlock()

	if c.blocked(a.Name) {
		a.Error = CodeExtension
		return a, drain(part), true
	}

	dir := c.settings.WorkingPath
	if info, err := os.Stat(dir); dir == "" || err != nil || !info.IsDir() {
		a.Error = CodeNoTmpDir
		return a, drain(part), true
	}

	f, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		a.Error = CodeCantWrite
		return a, drain(part), true
	}
	path := f.Name()

	limit := formMax
	if sys := c.settings.SystemMaxBytes; sys > 0 && sys < limit {
		limit = sys
	}
	reader := io.Reader(part)
	if limit < math.MaxInt64 {
		reader = io.LimitReader(part, limit+1)
	}

	w := &trackingWriter{w: f}
	n, copyErr := io.Copy(w, reader)
	closeErr := f.Close()

	switch {
	case w.err != nil || closeErr != nil:
		os.Remove(path)
		a.Error = CodeCantWrite
		return a, drain(part), true
	case copyErr != nil:
		os.Remove(path)
		a.Error = CodePartial
		a.Size = n
		return a, true, true
	case n > limit:
		os.Remove(path)
		if sys := c.settings.SystemMaxBytes; sys > 0 && n > sys {
			a.Error = CodeIniSize
		} else {
			a.Error = CodeFormSize
		}
		return a, drain(part), true
	}

	c.mu.Lock()
	c.uploaded[path] = struct{}{}
	c.mu.Unlock()

	a.TmpName = path
	a.Size = n
	return a, false, true
}

func (c *Channel) blocked(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, b := range c.settings.BlockedExtensions {
		b = strings.ToLower(strings.TrimSpace(b))
		if !strings.HasPrefix(b, ".") {
			b = "." + b
		}
		if ext == b {
			return true
		}
	}
	return false
}

// fieldPath parses a submitted field name into its bracket path. The base
// key gets "." and " " replaced by "_", and an empty key "[]" takes one more
// than the largest integer key already used at its level.
func (c *Channel) fieldPath(name string) []string {
	name = strings.TrimLeft(name, " ")
	base, keys := name, []string(nil)
	if i := strings.IndexByte(name, '['); i > 0 && strings.IndexByte(name[i:], ']') > 0 {
		base, keys = splitFieldName(name)
	}
	base = strings.NewReplacer(".", "_", " ", "_", "[", "_").Replace(base)

	c.mu.Lock()
	defer c.mu.Unlock()

	path := []string{base}
	for _, key := range keys {
		prefix := strings.Join(path, "\x00")
		if key == "" {
			key = strconv.Itoa(c.indexes[prefix])
		}
		if n, ok := integerKey(key); ok && n >= c.indexes[prefix] {
			c.indexes[prefix] = n + 1
		}
		path = append(path, key)
	}
	return path
}

// integerKey reports whether key is a canonical non-negative integer, the
// only keys that move the next automatic index.
func integerKey(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 || strconv.Itoa(n) != key || n == math.MaxInt {
		return 0, false
	}
	return n, true
}

// IsUploaded reports whether path was written by this channel.
func (c *Channel) IsUploaded(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.uploaded[path]
	return ok
}

// Limits returns the limits in effect for this request. The form limit is
// the last MAX_FILE_SIZE value seen.
func (c *Channel) Limits() StaticLimits {
	c.mu.Lock()
	defer c.mu.Unlock()
	sys := c.settings.SystemMaxBytes
	if sys <= 0 {
		sys = math.MaxInt64
	}
	return StaticLimits{System: sys, Form: c.formMax}
}

// Cleanup removes temporary files that were not moved away.
func (c *Channel) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for path := range c.uploaded {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func hasFilename(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

// drain discards the rest of a part and reports whether the body ended
// inside it.
func drain(part *multipart.Part) bool {
	_, err := io.Copy(io.Discard, part)
	return err != nil
}

type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
