package fetcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"media-relay-bot/internal/model"
)

var partialExts = []string{".part", ".ytdl", ".temp", ".tmp"}

// UserGlob matches every file in a user's namespace.
func UserGlob(dir string, userID int64) string {
	return filepath.Join(dir, fmt.Sprintf("%d_*", userID))
}

// ArtifactPath names a derived file inside the user's namespace.
func ArtifactPath(dir string, userID int64, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%d_%s", userID, name))
}

// Locate returns the raw download of a user. When several files match, the
// lexicographically first complete one is returned.
func Locate(dir string, userID int64) (model.Artifact, error) {
	matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("%d_raw.*", userID)))
	if err != nil {
		return model.Artifact{}, errors.Wrap(err, "glob artifacts")
	}
	matches = lo.Reject(matches, func(p string, _ int) bool {
		return lo.Contains(partialExts, strings.ToLower(filepath.Ext(p)))
	})
	sort.Strings(matches)

	for _, p := range matches {
		st, err := os.Stat(p)
		if err != nil || st.IsDir() {
			continue
		}
		return model.Artifact{Path: p, Size: st.Size(), Ext: strings.ToLower(filepath.Ext(p))}, nil
	}
	return model.Artifact{}, model.Errorf(model.KindArtifactMissing, "no file for user %d in %s", userID, dir)
}

// Stat refreshes the artifact for path.
func Stat(path string) (model.Artifact, error) {
	st, err := os.Stat(path)
	if err != nil {
		return model.Artifact{}, errors.Wrap(err, "stat artifact")
	}
	return model.Artifact{Path: path, Size: st.Size(), Ext: strings.ToLower(filepath.Ext(path))}, nil
}

// Purge removes every file in the user's namespace and returns how many
// were deleted.
func Purge(dir string, userID int64) (int, error) {
	matches, err := filepath.Glob(UserGlob(dir, userID))
	if err != nil {
		return 0, errors.Wrap(err, "glob artifacts")
	}
	removed := 0
	var firstErr error
	for _, p := range matches {
		if err := os.RemoveAll(p); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "remove %s", p)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}
