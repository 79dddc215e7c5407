package intake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"tinyimg/internal/result"
)

// CollectOptions controls how dropped directories are expanded.
type CollectOptions struct {
	MaxDepth      int      // -1 unlimited; 0 means only the directory itself
	FollowSymlink bool     // descend into symlinked directories
	Excludes      []string // gitignore-style patterns, matched relative to each dropped directory
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsImageName reports whether name has an extension the drop area accepts.
func IsImageName(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// ImageExtensions lists the accepted extensions, sorted.
func ImageExtensions() []string {
	out := make([]string, 0, len(imageExts))
	for ext := range imageExts {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Collect turns dropped paths into a batch. Plain files are taken as-is;
// directories contribute the image files below them. Files that were found
// are returned together with any merged stat/walk error.
func Collect(ctx context.Context, paths []string, opts CollectOptions) ([]result.File, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var matcher *ignore.GitIgnore
	if len(opts.Excludes) > 0 {
		matcher = ignore.CompileIgnoreLines(opts.Excludes...)
	}

	var files []result.File
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.IsDir() {
			f, err := result.StatFile(p)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			files = append(files, f)
			continue
		}
		root := filepath.Clean(p)
		w := &walker{ctx: ctx, opts: opts, matcher: matcher, root: root, visited: map[string]bool{}}
		dir := root
		if real, err := filepath.EvalSymlinks(root); err == nil {
			w.visited[real] = true
			dir = real
		}
		w.walk(dir, root, opts.MaxDepth)
		files = append(files, w.files...)
		errs = append(errs, w.errs...)
	}
	return files, combineErrors(errs)
}

// walker expands one dropped directory. Followed symlinks are walked at
// their target but matched against excludes by their path under root.
type walker struct {
	ctx     context.Context
	opts    CollectOptions
	matcher *ignore.GitIgnore
	root    string
	visited map[string]bool // resolved directories already walked
	files   []result.File
	errs    []error
}

// walk visits dir, which appears as logical under the dropped root, down to
// maxDepth levels (-1 unlimited).
func (w *walker) walk(dir, logical string, maxDepth int) {
	dirDepth := depthOf(dir)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.errs = append(w.errs, fmt.Errorf("walk error at %s: %w", path, err))
			return nil
		}
		if err := w.ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		logicalPath := filepath.Join(logical, rel)
		if logicalPath != w.root && excluded(w.root, logicalPath, d.IsDir(), w.matcher) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		depth := depthOf(path) - dirDepth
		if maxDepth >= 0 && depth > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			info, statErr := os.Stat(path)
			if statErr != nil {
				w.errs = append(w.errs, statErr)
				return nil
			}
			if info.IsDir() {
				if w.opts.FollowSymlink {
					w.follow(path, logicalPath, remainingDepth(maxDepth, depth))
				}
				return nil
			}
		}
		if d.IsDir() || !IsImageName(d.Name()) {
			return nil
		}
		f, statErr := result.StatFile(path)
		if statErr != nil {
			w.errs = append(w.errs, statErr)
			return nil
		}
		w.files = append(w.files, f)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		w.errs = append(w.errs, err)
	}
}

func (w *walker) follow(link, logical string, maxDepth int) {
	real, err := filepath.EvalSymlinks(link)
	if err != nil {
		w.errs = append(w.errs, err)
		return
	}
	if w.visited[real] {
		return
	}
	w.visited[real] = true
	w.walk(real, logical, maxDepth)
}

func remainingDepth(max, used int) int {
	if max < 0 {
		return -1
	}
	if used >= max {
		return 0
	}
	return max - used
}

func excluded(root, path string, isDir bool, matcher *ignore.GitIgnore) bool {
	if matcher == nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		// directory-only patterns ("build/") need the trailing slash
		if matcher.MatchesPath(rel + "/") {
			return true
		}
	}
	return matcher.MatchesPath(rel)
}

func depthOf(p string) int {
	clean := filepath.Clean(p)
	depth := 0
	for {
		parent := filepath.Dir(clean)
		if parent == clean {
			break
		}
		depth++
		clean = parent
	}
	return depth
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("multiple errors:")
	for _, e := range errs {
		if e == nil {
			continue
		}
		b.WriteString("\n - ")
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
