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

package cli

import "sync/atomic"

// KeyWatcher reports whether the user pressed escape during a long run.
// The zero value is an inert watcher that never fires, which is also what
// WatchEscape returns when stdin is not a terminal.
type KeyWatcher struct {
	pressed int32
	stopped int32
	restore func()
}

// Pressed reports whether escape has been seen. It is safe to call from
// the binning loop's interrupt hook.
func (kw *KeyWatcher) Pressed() bool {
	return atomic.LoadInt32(&kw.pressed) != 0
}

// Stop restores the terminal state. Idempotent.
func (kw *KeyWatcher) Stop() {
	if !atomic.CompareAndSwapInt32(&kw.stopped, 0, 1) {
		return
	}
	if kw.restore != nil {
		kw.restore()
	}
}
