// Package directives exercises the validation of symbol directives.
package directives

type File struct{ fd int }

//tmelide:symbol close f
func (f *File) Close() {}

//tmelide:symbol // want "tmelide:symbol requires an event name"
func (f *File) Reset() {}

//tmelide:symbol flush f g // want "tmelide:symbol flush binds 2 arguments, function takes 1"
func (f *File) Flush() {}

//tmelide:symbol seek f n // want `tmelide:symbol seek: variable "n" binds int, which has no identity`
func (f *File) Seek(n int) {}

//tmelide:symbol sync f f // want `tmelide:symbol sync: variable "f" bound twice`
func (f *File) Sync() {}

//tmelide:symbol close c // want `tmelide:symbol close binds \[c\], automaton double-close declares \[f\]`
func Shutdown(c *File) {}

//tmelide:symbol write _ f
func Write(p []byte, f *File) {}

//tmelide:symbol 1st f // want `tmelide:symbol: invalid event name "1st"`
func First(f *File) {}
