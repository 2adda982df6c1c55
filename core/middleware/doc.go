// Package middleware contains HTTP middleware for the status API.
//
// # Components
//
//   - Auth: rejects requests without the configured X-API-Key header.
//   - RayID: tags every request with a ray id, stored in the request locals
//     and echoed in the X-Ray-ID response header for log correlation.
//
// Both are registered globally in the start command.
package middleware
