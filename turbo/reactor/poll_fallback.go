//go:build !linux && !darwin

// Fallback poller for POSIX platforms other than Linux and Darwin. Windows
// is not covered: x/sys/unix does not build there and there is no IOCP
// backend (spec.md §4.11 lists IOCP as the third backend). Uses
// unix.Select in a loop,
// which is available on every POSIX-ish GOOS x/sys/unix supports; this
// keeps the reactor's public interface identical across platforms at the
// cost of the FD_SETSIZE limit select() carries.
package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type selectPoller struct {
	want map[int]Event
}

func newPoller() (poller, error) {
	return &selectPoller{want: make(map[int]Event)}, nil
}

func (p *selectPoller) add(fd int, want Event) error {
	p.want[fd] = want
	return nil
}

func (p *selectPoller) remove(fd int) error {
	delete(p.want, fd)
	return nil
}

func (p *selectPoller) wait(timeoutMillis int) ([]readyFD, error) {
	var rset, wset unix.FdSet
	maxFD := 0
	for fd, want := range p.want {
		if want&EventReadable != 0 {
			fdSet(&rset, fd)
		}
		if want&EventWritable != 0 {
			fdSet(&wset, fd)
		}
		if fd > maxFD {
			maxFD = fd
		}
	}
	var tv *unix.Timeval
	if timeoutMillis >= 0 {
		d := time.Duration(timeoutMillis) * time.Millisecond
		t := unix.NsecToTimeval(d.Nanoseconds())
		tv = &t
	}
	_, err := unix.Select(maxFD+1, &rset, &wset, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	var out []readyFD
	for fd, want := range p.want {
		var ev Event
		if want&EventReadable != 0 && fdIsSet(&rset, fd) {
			ev |= EventReadable
		}
		if want&EventWritable != 0 && fdIsSet(&wset, fd) {
			ev |= EventWritable
		}
		if ev != 0 {
			out = append(out, readyFD{fd: fd, ev: ev})
		}
	}
	return out, nil
}

func (p *selectPoller) close() error { return nil }

// fdSet/fdIsSet manipulate a unix.FdSet's bitmap directly: the type is a
// fixed-size array of machine words with no Set/IsSet accessors of its own.
const fdSetWordBits = 64

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/fdSetWordBits] |= 1 << (uint(fd) % fdSetWordBits)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/fdSetWordBits]&(1<<(uint(fd)%fdSetWordBits)) != 0
}
