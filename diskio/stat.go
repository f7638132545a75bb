// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package diskio

import "os"

// StatSize returns the size in blocks of an existing disk image file, so a
// caller can tell whether a path names a filesystem that has already been
// formatted or needs a fresh mkfs.
func StatSize(path string) (blocks int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size() / BlockSize, nil
}
