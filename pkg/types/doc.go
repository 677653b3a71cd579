// Package types defines the VENTO record model (Product, User), the
// user-scoped record store interfaces, backend configuration, and the
// standard errors shared by every backend and surface.
//
// Records serialize to the pipe-delimited text form used by the flat-file
// backend; document and SQL backends map the same fields to their own
// schemas.
package types
