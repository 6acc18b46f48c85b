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

package session

import (
	"log"
	"os"
)

// Logger is the narrow logging surface a Database needs. The core
// carries no third-party logging dependency anywhere, so this wraps
// the standard library's log.Logger the same restrained way the rest
// of the module treats ambient concerns outside its own domain.
type Logger interface {
	Printf(format string, args ...any)
}

type stdLogger struct{ l *log.Logger }

func (s stdLogger) Printf(format string, args ...any) { s.l.Printf(format, args...) }

func defaultLogger() Logger {
	return stdLogger{l: log.New(os.Stderr, "vertexdb: ", log.LstdFlags)}
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}
