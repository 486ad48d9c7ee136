// Package interactive runs a browser-based authorization step and reports
// its outcome as a Result: success with the callback parameters,
// cancellation, timeout or error.
package interactive
