// Package api exposes a machine registry over HTTP with a chi router.
//
// Responses are JSON. Engine rejections answer 409 with the engine code in
// the body, for example:
//
//	{"error":"...","code":"invalid_action","error_code":10,"state":"created","action":"ship"}
//
// History store failures answer 503 so callers can retry; the registry has
// already dropped the live instance and will resume it from the store.
package api
