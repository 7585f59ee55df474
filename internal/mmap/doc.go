// Package mmap maps database files read-only into memory.
//
//	m, err := mmap.Open("airports.gdb")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()
//	_ = m.Advise(mmap.AccessRandom)
//
// Unix uses mmap(2) and madvise(2). Windows uses CreateFileMapping and
// MapViewOfFile; Advise is a no-op there.
//
// A Mapping may be read from any number of goroutines. Close is idempotent,
// but no goroutine may touch the slice returned by Bytes after Close.
package mmap
