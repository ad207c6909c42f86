// Package useafterclose exercises elision against the use-after-close
// pattern.
package useafterclose

// File is a resource that must not be read after Close.
type File struct{ fd int }

//tmelide:symbol close f
func (f *File) Close() { f.fd = -1 }

//tmelide:symbol read f _
func (f *File) Read(p []byte) int { return copy(p, "data") }

// =============================================================================
// SHOULD REPORT
// =============================================================================

func readThenClose(p []byte) int {
	f := &File{fd: 1}
	n := f.Read(p) // want `instrumentation point "read" can never contribute to a match of use-after-close`
	f.Close()      // want `instrumentation point "close" can never contribute to a match of use-after-close`
	return n
}

func readOtherAfterClose(p []byte) int {
	f := &File{fd: 1}
	g := &File{fd: 2}
	f.Close()        // want `instrumentation point "close" can never contribute to a match of use-after-close`
	return g.Read(p) // want `instrumentation point "read" can never contribute to a match of use-after-close`
}

// =============================================================================
// SHOULD NOT REPORT
// =============================================================================

var last *File

// The caller may read f after it returns.
func closeOnly(f *File) {
	f.Close()
}

func closeAndReturn() *File {
	f := &File{fd: 1}
	f.Close()
	return f
}

func closeAndKeep() {
	f := &File{fd: 1}
	f.Close()
	last = f
}

func readReturned(p []byte) int {
	f := closeAndReturn()
	return f.Read(p)
}

func readAfterCloseOnly(p []byte) int {
	f := &File{fd: 1}
	closeOnly(f)
	return f.Read(p)
}

// f may have been closed by the caller.
func readParam(f *File, p []byte) int {
	return f.Read(p)
}

func closeThenRead(p []byte) int {
	f := &File{fd: 1}
	f.Close()
	return f.Read(p)
}

// g may be the file closed by an earlier call.
func readParamAfterClose(g *File, p []byte) int {
	f := &File{fd: 1}
	f.Close()
	return g.Read(p)
}

func readInterface(r interface{ Read([]byte) int }, p []byte) int {
	f := &File{fd: 1}
	f.Close()
	return r.Read(p)
}
