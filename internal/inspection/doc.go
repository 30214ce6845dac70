// Package inspection inventories disc titles and caches a per-drive snapshot
// that rip requests are validated against.
package inspection
