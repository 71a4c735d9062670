package handle

import "errors"

// ErrFormatConflict is returned when two declarations of the same image
// handle request incompatible explicit formats.
var ErrFormatConflict = errors.New("resource info conflict: incompatible image formats")
