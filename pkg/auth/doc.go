// Package auth provides the authentication schemes that decorate outbound
// requests with credentials.
//
// A Scheme produces request headers, optionally refreshes its own credential,
// reports whether it is authenticated and can clear itself. The set of
// schemes is closed: Bearer, APIKey, OAuth2, Custom and Composite. Custom is
// the escape hatch for non-standard flows such as signed requests.
//
// Whether a scheme can refresh is expressed by Refresher returning a non-nil
// RefreshFunc rather than by probing for a method.
//
// # Header merging
//
// MergeHeaders asks every scheme for headers in order and shallow-merges
// them; when two schemes set the same header the later one wins.
//
// # Query parameters
//
// Headers cannot say "add this to the URL", so an APIKey configured with
// InQuery emits QueryParamHeader instead. The executor in package authhttp
// strips that header and appends its value to the request's query string.
package auth
