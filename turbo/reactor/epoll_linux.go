//go:build linux

package reactor

import "golang.org/x/sys/unix"

type epollPoller struct {
	fd int
}

func newPoller() (poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{fd: fd}, nil
}

func toEpollEvents(want Event) uint32 {
	var e uint32
	if want&EventReadable != 0 {
		e |= unix.EPOLLIN
	}
	if want&EventWritable != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) Event {
	var ev Event
	if e&unix.EPOLLIN != 0 {
		ev |= EventReadable
	}
	if e&unix.EPOLLOUT != 0 {
		ev |= EventWritable
	}
	if e&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		ev |= EventHangup
	}
	return ev
}

func (p *epollPoller) add(fd int, want Event) error {
	ev := unix.EpollEvent{Events: toEpollEvents(want) | unix.EPOLLHUP, Fd: int32(fd)}
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) remove(fd int) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(timeoutMillis int) ([]readyFD, error) {
	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(p.fd, events, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]readyFD, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, readyFD{fd: int(events[i].Fd), ev: fromEpollEvents(events[i].Events)})
	}
	return out, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.fd)
}
