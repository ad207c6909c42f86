package doubleclose

// =============================================================================
// SHOULD NOT REPORT - Ignore directives
// =============================================================================

//tmelide:ignore
func ignoredFunction() {
	f := &File{fd: 1}
	_ = f.Close()
}

//tmelide:ignore
func ignoredWithClosure() {
	func() {
		f := &File{fd: 1}
		_ = f.Close()
	}()
}

func ignoredLine() {
	f := &File{fd: 1}
	_ = f.Close() //tmelide:ignore
}

func ignoredPreviousLine() {
	f := &File{fd: 1}
	//tmelide:ignore
	_ = f.Close()
}

func ignoredWithReason() {
	f := &File{fd: 1}
	// tmelide:ignore - kept for the audit log
	_ = f.Close()
}

// =============================================================================
// SHOULD REPORT - Unused ignore directives
// =============================================================================

func unusedIgnore(f *File) {
	//tmelide:ignore // want "unused tmelide:ignore directive"
	_ = f.Close()
}
