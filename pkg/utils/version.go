// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

var (
	Version   = "0.2.0"
	Sha       = "HEAD"
	Buildtime = "dev"
)
