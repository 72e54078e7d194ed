//go:build linux || darwin

package poller

import (
	"testing"

	"golang.org/x/sys/unix"
)

func newPipe(t *testing.T) (r, w int) {
	t.Helper()

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newSocketPair(t *testing.T) (a, b int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func contains(fds []int, fd int) bool {
	for _, f := range fds {
		if f == fd {
			return true
		}
	}
	return false
}

func TestPollerReadReadiness(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()

	r, w := newPipe(t)
	if err := p.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	fds, err := p.Wait(0)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if contains(fds, r) {
		t.Error("Empty pipe should not be readable")
	}

	if _, err := unix.Write(w, []byte("x")); err != nil {
		t.Fatal(err)
	}

	fds, err = p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !contains(fds, r) {
		t.Errorf("Expected %d to be readable, got %v", r, fds)
	}

	if err := p.Remove(r); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	fds, _ = p.Wait(0)
	if contains(fds, r) {
		t.Error("Removed descriptor should not be reported")
	}
}

func TestPollerWriteInterest(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()

	_, w := newPipe(t)
	if err := p.Add(w); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Write end never becomes readable
	fds, _ := p.Wait(0)
	if contains(fds, w) {
		t.Error("Write end should not report read readiness")
	}

	if err := p.EnableWrite(w); err != nil {
		t.Fatalf("EnableWrite: %v", err)
	}
	fds, err = p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !contains(fds, w) {
		t.Errorf("Expected %d to be writable, got %v", w, fds)
	}

	if err := p.Remove(w); err != nil {
		t.Errorf("Remove after EnableWrite: %v", err)
	}
}

func TestPollerEnableRead(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()

	r, w := newSocketPair(t)
	if err := p.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.EnableWrite(r); err != nil {
		t.Fatalf("EnableWrite: %v", err)
	}
	fds, err := p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !contains(fds, r) {
		t.Fatalf("Expected %d to be writable, got %v", r, fds)
	}

	if err := p.EnableRead(r); err != nil {
		t.Fatalf("EnableRead: %v", err)
	}
	fds, _ = p.Wait(0)
	if contains(fds, r) {
		t.Error("Writable socket reported after switching back to read interest")
	}

	if _, err := unix.Write(w, []byte("x")); err != nil {
		t.Fatal(err)
	}
	fds, err = p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !contains(fds, r) {
		t.Errorf("Expected %d to be readable again, got %v", r, fds)
	}

	// Read interest only: EnableRead twice is harmless
	if err := p.EnableRead(r); err != nil {
		t.Errorf("EnableRead without write interest: %v", err)
	}
}
