package request

import "fmt"

// typeNameOf returns a stable, human-readable name for a request's dynamic
// type, mirroring the teacher runtime's fmt.Sprintf("%T", ...) convention
// used for its proto/event schema registry keys.
func typeNameOf(r Request) string {
	return fmt.Sprintf("%T", r)
}
