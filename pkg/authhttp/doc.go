// Package authhttp sends HTTP requests with credentials from a set of auth
// schemes. A 401 response triggers a coordinated refresh followed by a
// bounded number of retries with freshly computed headers.
package authhttp
