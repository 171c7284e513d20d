// Package menu merges the navigation header's link sources into one ordered
// menu and derives the header's login, registration and documentation URLs.
//
// Every function here is pure: inputs are never mutated and results share no
// backing arrays with them, so a menu can be recomputed from scratch whenever
// any source changes.
package menu
