package store

import (
	"fmt"
	"strings"
)

// SplitPath separates a document path into its parent collection path, the
// collection id (last collection segment) and the document id.
func SplitPath(path string) (collection, collectionID, id string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}

	collection = strings.Join(segments[:len(segments)-1], "/")
	collectionID = segments[len(segments)-2]
	id = segments[len(segments)-1]
	return collection, collectionID, id, nil
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}
