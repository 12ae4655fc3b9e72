// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

//go:build linux

package cli

import (
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

const escapeByte = 0x1b

// WatchEscape arms a watcher that reports whether the user pressed escape
// on the controlling terminal. Stdin is switched to non-canonical,
// no-echo mode until Stop is called. When stdin is not a terminal the
// watcher is inert and Pressed always returns false.
func WatchEscape() *KeyWatcher {
	kw := &KeyWatcher{}
	fd := int(os.Stdin.Fd())
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return kw
	}

	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return kw
	}
	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return kw
	}
	kw.restore = func() {
		unix.IoctlSetTermios(fd, unix.TCSETS, saved)
	}

	go func() {
		buf := make([]byte, 1)
		for atomic.LoadInt32(&kw.stopped) == 0 {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 && buf[0] == escapeByte {
				atomic.StoreInt32(&kw.pressed, 1)
				return
			}
		}
	}()
	return kw
}
