// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"encoding/binary"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// watchSettle is how long the watcher waits after a change before
// re-reading, so editors that write a file in several steps produce
// one reload.
const watchSettle = 50 * time.Millisecond

// WatchFixture reloads the fixture at path into a whenever the file is
// rewritten or replaced. An unparsable or inconsistent fixture is
// logged and skipped; the authority keeps serving what it had. The
// returned function stops the watcher.
func (a *Authority) WatchFixture(path string) (stop func(), err error) {
	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	// The directory is watched, not the file: an atomic rename gives
	// the fixture a new inode that a file watch would miss.
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if _, err := unix.InotifyAddWatch(fd, filepath.Dir(absolutePath), unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO); err != nil {
		unix.Close(fd)
		return nil, err
	}

	stopped := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.watchLoop(fd, absolutePath, stopped)
	}()

	closed := false
	return func() {
		if closed {
			return
		}
		closed = true
		close(stopped)
		<-done
	}, nil
}

func (a *Authority) watchLoop(fd int, path string, stopped <-chan struct{}) {
	defer unix.Close(fd)
	logger := a.logger.With("fixture", path)
	filename := filepath.Base(path)
	buffer := make([]byte, 4096)

	for {
		select {
		case <-stopped:
			return
		default:
		}

		descriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(descriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			logger.Error("fixture watch stopped", "error", err)
			return
		}
		if count == 0 {
			continue
		}

		read, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			logger.Error("fixture watch stopped", "error", err)
			return
		}
		if !inotifyNames(buffer[:read], filename) {
			continue
		}

		time.Sleep(watchSettle)
		drainInotify(fd, buffer)
		a.reloadFile(path, logger)
	}
}

func (a *Authority) reloadFile(path string, logger *slog.Logger) {
	fixture, err := LoadFixture(path)
	if err != nil {
		logger.Warn("fixture not reloaded", "error", err)
		return
	}
	cursor, err := a.Reload(fixture)
	if err != nil {
		logger.Warn("fixture not reloaded", "error", err)
		return
	}
	logger.Info("fixture reloaded", "cursor", cursor)
}

// inotifyNames reports whether any event in buffer names filename.
// Each event is a 16-byte header (wd, mask, cookie, len) followed by
// len bytes of NUL-padded name.
func inotifyNames(buffer []byte, filename string) bool {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		end := offset + unix.SizeofInotifyEvent + nameLength
		if end > len(buffer) {
			break
		}
		name := buffer[offset+unix.SizeofInotifyEvent : end]
		for i, b := range name {
			if b == 0 {
				name = name[:i]
				break
			}
		}
		if string(name) == filename {
			return true
		}
		offset = end
	}
	return false
}

func drainInotify(fd int, buffer []byte) {
	for {
		if _, err := unix.Read(fd, buffer); err != nil {
			return
		}
	}
}
