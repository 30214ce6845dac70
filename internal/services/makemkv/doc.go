// Package makemkv shells out to makemkvcon in robot mode and parses its
// DRV/CINFO/TINFO/PRGV/MSG output.
package makemkv
