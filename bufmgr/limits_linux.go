// Copyright (C) 2024 VertexDB, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

//go:build linux

package bufmgr

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// procMemTotal reports total RAM, the figure /proc/meminfo lists as
// MemTotal, but obtains it via unix.Sysinfo(2) instead of reading that
// file: Sysinfo gives total RAM in one syscall without the fragile
// "MemTotal: %d kB" parse.
func procMemTotal() int64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return int64(info.Totalram) * int64(info.Unit)
}

// cgroupMemoryMax reads the effective cgroup v2 memory ceiling from
// /sys/fs/cgroup/memory.max, if this process is confined to one.
// "max" means unconfined; a missing file means cgroup v1 or no cgroup
// at all, in which case the caller falls back to whole-machine RAM.
func cgroupMemoryMax() int64 {
	b, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err != nil {
		return 0
	}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "max" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
