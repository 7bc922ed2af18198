// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

func Fuzz(data []byte) int {
	f := OpenBytes(data, &Options{Unquicken: true})
	if err := f.Validate(); err != nil {
		return 0
	}
	if _, err := f.Process(ProcessConfig{Unquicken: true, DumpDeps: true}); err != nil {
		return 0
	}
	return 1
}
