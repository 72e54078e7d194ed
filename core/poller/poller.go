// Package poller wraps the platform readiness notifier (epoll on Linux,
// kqueue on macOS). Registrations are level-triggered.
package poller

// Poller is the I/O multiplexing interface.
// A descriptor is watched for either reads or writes, never both.
type Poller interface {
	// Add watches fd for readability
	Add(fd int) error
	// EnableWrite switches fd from read to write interest
	EnableWrite(fd int) error
	// EnableRead switches fd back to read interest
	EnableRead(fd int) error
	Remove(fd int) error
	// Wait blocks up to timeout milliseconds (-1 forever) and returns
	// the ready descriptors
	Wait(timeout int) ([]int, error)
	Close() error
}
