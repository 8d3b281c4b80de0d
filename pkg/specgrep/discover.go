// Copyright 2026 The Specgrep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package specgrep

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover expands the spec patterns under folder and removes every file that
// matches an exclude pattern. Relative patterns are resolved against folder.
// The returned paths are absolute, de-duplicated and sorted per pattern in
// the order the patterns were given.
func Discover(folder string, patterns, excludes []string) ([]string, error) {
	root, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder %s: %w", folder, err)
	}

	for _, p := range append(append([]string(nil), patterns...), excludes...) {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("invalid spec pattern %q", p)
		}
	}

	seen := make(map[string]struct{})
	var specs []string

	for _, pattern := range patterns {
		matches, err := globPattern(root, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to expand spec pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)

		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			excluded, err := isExcluded(root, m, excludes)
			if err != nil {
				return nil, err
			}
			if excluded {
				continue
			}
			seen[m] = struct{}{}
			specs = append(specs, m)
		}
	}

	return specs, nil
}

// globPattern returns the absolute paths of the files matching pattern.
func globPattern(root, pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		return matches, nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), filepath.ToSlash(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(root, filepath.FromSlash(m)))
	}
	return out, nil
}

func isExcluded(root, file string, excludes []string) (bool, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = file
	}
	rel = filepath.ToSlash(rel)

	for _, ex := range excludes {
		if filepath.IsAbs(ex) {
			ok, err := doublestar.PathMatch(ex, file)
			if err != nil {
				return false, fmt.Errorf("failed to match exclude pattern %q: %w", ex, err)
			}
			if ok {
				return true, nil
			}
			continue
		}

		ok, err := doublestar.Match(filepath.ToSlash(ex), rel)
		if err != nil {
			return false, fmt.Errorf("failed to match exclude pattern %q: %w", ex, err)
		}
		if ok {
			return true, nil
		}
		// A pattern without a separator, such as "*.hot-update.js", applies at
		// any depth.
		if !strings.Contains(filepath.ToSlash(ex), "/") {
			if ok, _ := doublestar.Match(ex, path.Base(rel)); ok {
				return true, nil
			}
		}
	}
	return false, nil
}
