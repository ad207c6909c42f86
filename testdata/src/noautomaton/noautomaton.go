// Package noautomaton is analyzed without a pattern: nothing is elided.
package noautomaton

type File struct{ fd int }

//tmelide:symbol close f
func (f *File) Close() { f.fd = -1 }

func closeFresh() {
	f := &File{fd: 1}
	f.Close()
}

//tmelide:symbol // want "tmelide:symbol requires an event name"
func (f *File) Reset() {}
