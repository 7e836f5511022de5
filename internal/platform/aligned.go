package platform

import "unsafe"

// AlignedBuffer returns a zeroed slice of size bytes whose first byte
// sits on an align boundary.
func AlignedBuffer(size, align int) []byte {
	if align <= 1 {
		return make([]byte, size)
	}
	buf := make([]byte, size+align)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&buf[0])) % uintptr(align)); rem != 0 {
		off = align - rem
	}
	return buf[off : off+size : off+size]
}

// IsAligned reports whether p starts on an align boundary.
func IsAligned(p []byte, align int) bool {
	if len(p) == 0 || align <= 1 {
		return true
	}
	return uintptr(unsafe.Pointer(&p[0]))%uintptr(align) == 0
}
