// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package nodepath validates and manipulates node paths of the
// hierarchical store. A canonical path starts with a single "/", has no
// trailing "/" and no empty, "." or ".." segments.
package nodepath

import (
	"fmt"
	"regexp"
	"strings"

	gerrors "github.com/tochemey/grayconf/errors"
)

const (
	// Separator separates path segments
	Separator = "/"

	// Root holds every node the service writes for its own bookkeeping
	Root = "/grayconf"
	// NotifyRoot holds the gray notification index
	NotifyRoot = Root + "/notify"
	// ClientRoot holds one notification pointer per machine
	ClientRoot = NotifyRoot + "/client"
	// BacklinkRoot holds the machine list of every live gray transaction
	BacklinkRoot = NotifyRoot + "/backlink"
	// ContentRoot holds the chunked record of every live gray transaction
	ContentRoot = NotifyRoot + "/content"
	// MonitorRoot holds one marker per registered service group
	MonitorRoot = Root + "/monitor"
)

var (
	pathPattern    = regexp.MustCompile(`^[A-Za-z0-9_:/.\-]+$`)
	segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_:.\-]+$`)
	slashes        = regexp.MustCompile(`/{2,}`)

	reserved = map[string]struct{}{
		Root:         {},
		NotifyRoot:   {},
		ClientRoot:   {},
		BacklinkRoot: {},
		ContentRoot:  {},
		MonitorRoot:  {},
	}
)

// Normalize returns the canonical form of path.
func Normalize(path string) (string, error) {
	if path == "" || !pathPattern.MatchString(path) {
		return "", gerrors.NewErrInvalidPath(path)
	}

	canonical := slashes.ReplaceAllString(Separator+path, Separator)
	canonical = strings.TrimSuffix(canonical, Separator)
	if canonical == "" {
		return "", gerrors.NewErrInvalidPath(path)
	}

	for _, segment := range strings.Split(canonical[1:], Separator) {
		if segment == "." || segment == ".." {
			return "", gerrors.NewErrInvalidPath(path)
		}
	}
	return canonical, nil
}

// ValidateSegment checks a single path segment such as a service host or a
// machine identifier.
func ValidateSegment(segment string) error {
	if !segmentPattern.MatchString(segment) || segment == "." || segment == ".." {
		return fmt.Errorf("segment=(%s) %w", segment, gerrors.ErrInvalidValue)
	}
	return nil
}

// Join appends names to a canonical parent path.
func Join(parent string, names ...string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(parent, Separator))
	for _, name := range names {
		sb.WriteString(Separator)
		sb.WriteString(name)
	}
	return sb.String()
}

// Parent returns the parent of a canonical path. The parent of a top level
// node is "/".
func Parent(path string) string {
	i := strings.LastIndex(path, Separator)
	if i <= 0 {
		return Separator
	}
	return path[:i]
}

// Base returns the last segment of a canonical path.
func Base(path string) string {
	return path[strings.LastIndex(path, Separator)+1:]
}

// Ancestors returns the proper ancestors of a canonical path, outermost
// first. The root is not included.
func Ancestors(path string) []string {
	var ancestors []string
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			ancestors = append(ancestors, path[:i])
		}
	}
	return ancestors
}

// ChildName reports whether key is a direct child of parent and returns
// its name. Both must be canonical; parent may be "/".
func ChildName(parent, key string) (string, bool) {
	prefix := ChildPrefix(parent)
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	name := key[len(prefix):]
	if name == "" || strings.Contains(name, Separator) {
		return "", false
	}
	return name, true
}

// ChildPrefix returns the key prefix shared by the children of parent.
func ChildPrefix(parent string) string {
	if parent == Separator {
		return Separator
	}
	return parent + Separator
}

// IsReserved reports whether path is one of the bookkeeping roots.
func IsReserved(path string) bool {
	_, ok := reserved[path]
	return ok
}

// IsInternal reports whether path lies inside the bookkeeping tree.
func IsInternal(path string) bool {
	return path == Root || strings.HasPrefix(path, Root+Separator)
}
