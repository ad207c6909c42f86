// Code generated by hand for tests. DO NOT EDIT.

package doubleclose

// Not reported: generated files are skipped.
func generatedCloseFresh() {
	f := &File{fd: 1}
	_ = f.Close()
}
