// Package goid reports the current goroutine's id, for asserting that
// loop-confined values are used on the right goroutine.
package goid

import (
	"runtime"
)

// Get parses the current goroutine id out of the stack header.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
