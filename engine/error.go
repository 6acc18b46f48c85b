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

package engine

import "fmt"

// ErrorKind classifies an Error the way spec.md §7 enumerates the core's
// error surface.
type ErrorKind int

const (
	KindParse ErrorKind = iota
	KindBind
	KindType
	KindConstraint
	KindNotFound
	KindResource
	KindTransaction
	KindCancelled
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "Parse"
	case KindBind:
		return "Bind"
	case KindType:
		return "Type"
	case KindConstraint:
		return "Constraint"
	case KindNotFound:
		return "NotFound"
	case KindResource:
		return "Resource"
	case KindTransaction:
		return "Transaction"
	case KindCancelled:
		return "Cancelled"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the single error type every package in the core surfaces.
// It carries an ErrorKind (for session-level routing, spec.md §7) plus
// an optional wrapped cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(k ErrorKind, format string, args ...any) error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(k ErrorKind, cause error, format string, args ...any) error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the ErrorKind from err if it is (or wraps) an *Error,
// defaulting to KindInternal for errors raised outside this package.
func KindOf(err error) ErrorKind {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return KindInternal
	}
	return e.Kind
}
