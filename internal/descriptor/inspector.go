package descriptor

import "context"

// Inspector decides whether a file is a package archive.
//
// Inspect returns (descriptor, true, nil) for a package and (zero, false, nil)
// for anything else. Errors classified as inspector errors mean the file looked
// like a package but could not be understood; callers treat those as "not a
// package". Any other error is an I/O failure that should abort the scan.
type Inspector interface {
	Inspect(ctx context.Context, path string) (Descriptor, bool, error)
}

// InspectorFunc adapts a function to the Inspector interface.
type InspectorFunc func(ctx context.Context, path string) (Descriptor, bool, error)

func (f InspectorFunc) Inspect(ctx context.Context, path string) (Descriptor, bool, error) {
	return f(ctx, path)
}
