package cnms

import "github.com/davecgh/go-spew/spew"

// dumpUserTypes renders the user-type registry for DumpState, the same
// way a host harness inspects compiler internals with go-spew during
// development rather than hand-rolling a %+v walk.
func dumpUserTypes(r *UserTypeRegistry) string {
	return spew.Sdump(r.entries)
}
