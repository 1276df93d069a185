// Package textutil sanitizes names for use as object keys and file names.
package textutil
