// Package vc is the branch based version control substrate consumed by the
// terminology core. Branch paths form a tree rooted at "MAIN"; commits are the
// only unit of atomic mutation and closing a commit without marking it
// successful rolls back every row stamped with its timepoint.
package vc

import "strings"

// RootPath is the root branch of the branch tree.
const RootPath = "MAIN"

const pathSeparator = "/"

// ParentPath returns everything before the last "/" of path, or "" when the
// path has no parent (i.e. it is the root).
func ParentPath(path string) string {
	i := strings.LastIndex(path, pathSeparator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// IsDescendantOrSelf reports whether path is ancestor itself or sits below it
// in the branch tree.
func IsDescendantOrSelf(path, ancestor string) bool {
	return path == ancestor || strings.HasPrefix(path, ancestor+pathSeparator)
}
