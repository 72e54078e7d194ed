//go:build darwin

package poller

import (
	"golang.org/x/sys/unix"
)

// KqueuePoller is a kqueue-based I/O multiplexer
type KqueuePoller struct {
	kqfd   int
	events []unix.Kevent_t
	ready  []int
}

// NewPoller creates a new Poller (macOS)
func NewPoller() (Poller, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kqfd)

	return &KqueuePoller{
		kqfd:   kqfd,
		events: make([]unix.Kevent_t, 1024),
		ready:  make([]int, 0, 1024),
	}, nil
}

func (p *KqueuePoller) change(changes ...unix.Kevent_t) error {
	_, err := unix.Kevent(p.kqfd, changes, nil, nil)
	return err
}

func kevent(fd int, filter int, flags int) unix.Kevent_t {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, filter, flags)
	return ev
}

// Add adds a file descriptor to the watch list
func (p *KqueuePoller) Add(fd int) error {
	return p.change(kevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE))
}

// EnableWrite switches fd to write readiness
func (p *KqueuePoller) EnableWrite(fd int) error {
	return p.change(
		kevent(fd, unix.EVFILT_READ, unix.EV_DELETE),
		kevent(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE),
	)
}

// EnableRead switches fd back to read readiness. fd may never have had
// write interest, so ENOENT from dropping it is fine.
func (p *KqueuePoller) EnableRead(fd int) error {
	if err := p.change(kevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE)); err != nil && err != unix.ENOENT {
		return err
	}
	return p.change(kevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE))
}

// Remove removes a file descriptor from the watch list. Only one of the
// two filters is registered at a time, so ENOENT from the other is fine.
func (p *KqueuePoller) Remove(fd int) error {
	errRead := p.change(kevent(fd, unix.EVFILT_READ, unix.EV_DELETE))
	errWrite := p.change(kevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE))
	if errRead != nil && errRead != unix.ENOENT {
		return errRead
	}
	if errWrite != nil && errWrite != unix.ENOENT {
		return errWrite
	}
	return nil
}

// Wait waits for I/O events. The returned slice is reused by the next call.
func (p *KqueuePoller) Wait(timeout int) ([]int, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(int64(timeout) * 1e6)
		ts = &t
	}

	n, err := unix.Kevent(p.kqfd, nil, p.events, ts)
	if err != nil && err != unix.EINTR {
		return nil, err
	}

	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		p.ready = append(p.ready, int(p.events[i].Ident))
	}
	return p.ready, nil
}

// Close closes the Poller
func (p *KqueuePoller) Close() error {
	return unix.Close(p.kqfd)
}
