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

package bufmgr

// defaultFraction is the share of detected system RAM the Buffer
// Manager claims when no explicit memory_limit is configured
// (spec.md §6, §4.10).
const defaultFraction = 0.60

// DetectLimit returns min(configured, detected-system-RAM * fraction)
// as spec.md §4.10 requires. configured <= 0 means "no explicit
// limit"; a cgroup v2 memory.max is preferred over the whole-machine
// total when both are available, since the engine is frequently
// embedded inside a container with a tighter ceiling than the host.
func DetectLimit(configured int64) int64 {
	total := detectedTotalRAM()
	budget := int64(float64(total) * defaultFraction)
	if configured > 0 && configured < budget {
		return configured
	}
	if budget > 0 {
		return budget
	}
	// Nothing could be detected (non-Linux, unreadable /proc); fall
	// back to a conservative fixed ceiling rather than "unlimited".
	return 512 << 20
}

func detectedTotalRAM() int64 {
	if m := cgroupMemoryMax(); m > 0 {
		return m
	}
	return procMemTotal()
}
