// Package fs provides the filesystem abstraction that backs a [Real] disk
// image: the vdev driver never calls the [os] package directly, it goes
// through an [FS] so that disk images can be swapped for an in-memory or
// fault-injecting implementation in tests.
//
// The main types are:
//   - [FS]: interface for opening and manipulating disk-image files
//   - [File]: interface for an open disk-image handle (satisfied by [os.File])
//   - [Real]: production implementation using the [os] package
//
// Example usage:
//
//	fsys := fs.NewReal()
//	f, err := fsys.OpenFile("image.tfs", os.O_RDWR, 0)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open disk-image file descriptor.
//
// This interface is satisfied by [os.File]. A vdev implementation reads and
// writes fixed-size sectors at explicit offsets, so only the pread/pwrite
// style primitives plus [File.Fd] (for advisory locking) and [File.Sync]
// (for durability) are exposed.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	io.Closer

	// ReadAt reads len(p) bytes starting at offset off. See [os.File.ReadAt].
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes len(p) bytes starting at offset off. See [os.File.WriteAt].
	WriteAt(p []byte, off int64) (int, error)

	// Truncate changes the size of the file. See [os.File.Truncate].
	Truncate(size int64) error

	// Fd returns the file descriptor. See [os.File.Fd].
	// Used for advisory locking via unix.Flock (golang.org/x/sys/unix).
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to stable storage. See [os.File.Sync].
	//
	// A disk image is only crash-consistent at points where the caller has
	// synced; the vdev driver relies on this before trusting a flushed sector.
	Sync() error
}

// FS defines the filesystem operations a disk image needs: opening,
// creating, and removing the backing file.
//
// All methods mirror their [os] package equivalents but can be intercepted
// for testing.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// OpenFile opens a disk image with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file. See [os.Remove].
	Remove(path string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
