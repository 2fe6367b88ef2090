package workflow

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// maxScanDepth limits how far below the BOM directory the listing descends.
const maxScanDepth = 4

var errLimitReached = errors.New("document limit reached")

// ListDocuments walks root for PDF files, skipping hidden entries and
// symlinks. It stops after limit documents (0 means no limit) and reports
// whether more were present. Unreadable subdirectories are skipped.
func ListDocuments(ctx context.Context, root string, limit int) ([]DocumentInfo, bool, error) {
	docs := []DocumentInfo{}
	truncated := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			if depth(root, path) > maxScanDepth {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			return nil
		}

		if limit > 0 && len(docs) >= limit {
			truncated = true
			return errLimitReached
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		docs = append(docs, DocumentInfo{
			Path:         path,
			Name:         d.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return nil, false, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, truncated, nil
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
