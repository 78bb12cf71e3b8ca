package smr

import "unsafe"

// garbage pairs a pointer with the destructor that should eventually run on
// it, once no guard can still observe it.
type garbage struct {
	ptr  unsafe.Pointer
	dtor func(unsafe.Pointer)
}
