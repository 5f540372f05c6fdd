// Package server exposes the image index over a small read-only HTTP API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter]
// implements it on top of [http.ServeMux] patterns, so routes look like
// "GET /images/{id}".
//
// [Middleware] is applied in the order it is added: the first one added sees the
// request first. [NewAPI] installs three:
//   - [Correlate] tags the request context with a correlation id, reusing the
//     client's X-Correlation-ID header when present;
//   - [RequestLogger] logs each request with that id;
//   - [Recoverer] turns panics into 500 responses.
//
// # Routes
//
//	GET /healthz             status and image count
//	GET /images/search       keyword search (q, mode, fields, limit, format)
//	GET /images/{id}         one image as JSON
//
// Errors are JSON objects with an "error" message and the request's correlation id.
package server
