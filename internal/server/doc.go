// Package server implements the HTTP surface of the panorama backend:
// the chi router, request parsing, translation of service errors to
// status codes, CORS, and the health, metrics and access-log middleware.
package server
