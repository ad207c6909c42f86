// Package doubleclose exercises elision against the double-close pattern.
package doubleclose

// File is a resource that must be closed at most once.
type File struct{ fd int }

// Close releases the file.
//
//tmelide:symbol close f
func (f *File) Close() error {
	f.fd = -1
	return nil
}

// Open returns a file the caller did not allocate.
func Open(name string) *File { return &File{fd: len(name)} }

func release(f *File) { _ = f.Close() }

func describe(f *File) int { return f.fd }

var last *File

// =============================================================================
// SHOULD REPORT - no execution of the function can close a file twice
// =============================================================================

func closeFresh() {
	f := &File{fd: 1}
	_ = f.Close() // want `instrumentation point "close" can never contribute to a match of double-close`
}

func closeBoth() {
	a := &File{fd: 1}
	b := &File{fd: 2}
	_ = a.Close() // want `instrumentation point "close" can never contribute to a match of double-close`
	_ = b.Close() // want `instrumentation point "close" can never contribute to a match of double-close`
}

func closeThenLen(s string) int {
	f := &File{fd: 1}
	_ = f.Close() // want `instrumentation point "close" can never contribute to a match of double-close`
	return len(s)
}

func closeOnBranch(ok bool) {
	f := &File{fd: 1}
	if ok {
		_ = f.Close() // want `instrumentation point "close" can never contribute to a match of double-close`
		return
	}
	f.fd++
}

// =============================================================================
// SHOULD NOT REPORT - a match is possible or cannot be ruled out
// =============================================================================

// describe may keep f and close it later.
func closeThenDescribe() int {
	f := &File{fd: 1}
	_ = f.Close()
	return describe(f)
}

// The caller may close the returned file again.
func closeAndReturn() *File {
	f := &File{fd: 1}
	_ = f.Close()
	return f
}

func closeAndKeep() {
	f := &File{fd: 1}
	_ = f.Close()
	last = f
}

func closeTwice() {
	f := &File{fd: 1}
	_ = f.Close()
	_ = f.Close()
}

// closeParam may receive the same file on two calls.
func closeParam(f *File) {
	_ = f.Close()
}

func closeOpened(name string) {
	f := Open(name)
	_ = f.Close()
}

// The allocation is not the same object on every iteration.
func closeInLoop(n int) {
	for i := 0; i < n; i++ {
		f := &File{fd: i}
		_ = f.Close()
	}
}

func closeThenRelease(g *File) {
	f := &File{fd: 1}
	_ = f.Close()
	release(g)
}

func closeThenCall(fn func()) {
	f := &File{fd: 1}
	_ = f.Close()
	fn()
}

func deferClose() {
	f := &File{fd: 1}
	defer f.Close()
	f.fd++
}

func goClose() {
	f := &File{fd: 1}
	go f.Close()
}
