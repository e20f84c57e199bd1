// Package textutil sanitizes recording names for use as directory and
// object-name segments.
package textutil
