// Package utils provides internal utility functions for the arrivals poller.
// This package is not intended to be imported by external code.
//
// It contains time formatting and countdown helpers.
package utils
