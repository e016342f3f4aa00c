// Package httputil holds the JSON response helpers shared by the HTTP
// handlers, so every endpoint emits the same envelope and logs failures the
// same way.
package httputil
