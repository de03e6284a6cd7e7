// Package textutil normalizes video titles into display names and
// filesystem-safe deck names.
package textutil
