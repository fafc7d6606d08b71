package testutil

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// FileLineNumber is where a table driven test case was declared, as package/file.go:line.
type FileLineNumber string

func (fln FileLineNumber) String() string {
	if fln == "" {
		return ""
	}
	return string(fln) + ": "
}

// MakeFileLineNumber returns where the caller of its caller is; each test package wraps it
// in a local fln() used inside case literals.
func MakeFileLineNumber() FileLineNumber {
	pcs := make([]uintptr, 1)
	if runtime.Callers(3, pcs) == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames(pcs).Next()
	if frame.File == "" {
		return ""
	}
	return FileLineNumber(fmt.Sprintf("%s:%d",
		filepath.Join(filepath.Base(filepath.Dir(frame.File)), filepath.Base(frame.File)),
		frame.Line))
}
