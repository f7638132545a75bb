// Copyright 2015 Google Inc. All Rights Reserved.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errno carries the kernel's fixed small-integer error
// namespace. Every operation on a syscall path returns one of these
// as a plain Go error rather than setting a global slot; the
// per-process "last error" convention is modeled explicitly by
// proctab.Process.LastError, which callers may stash an Errno into
// after a failed operation.
package errno

import "fmt"

// Errno is a kernel error code. Values below 100 are reported to the
// user on syscall return (disposition 2); values >= 100 are reserved
// to raise SIGSYS instead (disposition 3).
type Errno int

// The subset of the V6 error namespace this core actually returns.
// Names and numbers follow usr/sys/*.h in the original source.
const (
	EPERM   Errno = 1
	ENOENT  Errno = 2
	ESRCH   Errno = 3
	EINTR   Errno = 4
	EIO     Errno = 5
	ENXIO   Errno = 6
	E2BIG   Errno = 7
	ENOEXEC Errno = 8
	EBADF   Errno = 9
	ECHILD  Errno = 10
	EAGAIN  Errno = 11
	ENOMEM  Errno = 12
	EACCES  Errno = 13
	EFAULT  Errno = 14
	ENOTBLK Errno = 15
	EBUSY   Errno = 16
	EEXIST  Errno = 17
	EXDEV   Errno = 18
	ENODEV  Errno = 19
	ENOTDIR Errno = 20
	EISDIR  Errno = 21
	EINVAL  Errno = 22
	ENFILE  Errno = 23
	EMFILE  Errno = 24
	ENOTTY  Errno = 25
	ETXTBSY Errno = 26
	EFBIG   Errno = 27
	ENOSPC  Errno = 28
	ESPIPE  Errno = 29
	EROFS   Errno = 30
	EMLINK  Errno = 31

	// EUFAULT is a distinct fault class raised only on syscall return
	// from a bad user address; kept separate from EFAULT since the two
	// are not interchangeable at the syscall boundary.
	EUFAULT Errno = 106
)

var names = map[Errno]string{
	EPERM:   "operation not permitted",
	ENOENT:  "no such file or directory",
	ESRCH:   "no such process",
	EINTR:   "interrupted system call",
	EIO:     "i/o error",
	ENXIO:   "no such device or address",
	E2BIG:   "argument list too long",
	ENOEXEC: "exec format error",
	EBADF:   "bad file descriptor",
	ECHILD:  "no child processes",
	EAGAIN:  "resource temporarily unavailable",
	ENOMEM:  "cannot allocate memory",
	EACCES:  "permission denied",
	EFAULT:  "bad address",
	ENOTBLK: "block device required",
	EBUSY:   "device or resource busy",
	EEXIST:  "file exists",
	EXDEV:   "cross-device link",
	ENODEV:  "no such device",
	ENOTDIR: "not a directory",
	EISDIR:  "is a directory",
	EINVAL:  "invalid argument",
	ENFILE:  "too many open files in system",
	EMFILE:  "too many open files",
	ENOTTY:  "inappropriate ioctl for device",
	ETXTBSY: "text file busy",
	EFBIG:   "file too large",
	ENOSPC:  "no space left on device",
	ESPIPE:  "illegal seek",
	EROFS:   "read-only file system",
	EMLINK:  "too many links",
	EUFAULT: "bad user address on syscall return",
}

// Error implements the error interface.
func (e Errno) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int(e))
}

// Signal reports whether this code is disposition 3: codes >= 100 are
// delivered as SIGSYS rather than reported in the return register.
func (e Errno) Signal() bool {
	return int(e) >= 100
}
