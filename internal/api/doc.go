// Package api contains the HTTP handlers, request/response models and
// error mapping for the engine's operator API. Handlers delegate all
// business logic to the service layer and only translate between HTTP
// and internal types.
package api
