//go:build darwin

package reactor

import "golang.org/x/sys/unix"

type kqueuePoller struct {
	fd int
}

func newPoller() (poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueuePoller{fd: fd}, nil
}

func (p *kqueuePoller) add(fd int, want Event) error {
	var changes []unix.Kevent_t
	if want&EventReadable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_CLEAR})
	}
	if want&EventWritable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_CLEAR})
	}
	_, err := unix.Kevent(p.fd, changes, nil, nil)
	return err
}

func (p *kqueuePoller) remove(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	unix.Kevent(p.fd, changes, nil, nil)
	return nil
}

func (p *kqueuePoller) wait(timeoutMillis int) ([]readyFD, error) {
	events := make([]unix.Kevent_t, 64)
	var ts *unix.Timespec
	if timeoutMillis >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMillis) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(p.fd, nil, events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	byFD := make(map[int]Event, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		var ev Event
		switch events[i].Filter {
		case unix.EVFILT_READ:
			ev = EventReadable
		case unix.EVFILT_WRITE:
			ev = EventWritable
		}
		if events[i].Flags&unix.EV_EOF != 0 {
			ev |= EventHangup
		}
		byFD[fd] |= ev
	}
	out := make([]readyFD, 0, len(byFD))
	for fd, ev := range byFD {
		out = append(out, readyFD{fd: fd, ev: ev})
	}
	return out, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.fd)
}
