// Package models defines domain entities and persistence interfaces for the pngx image index.
//
// [ImageRecord] is the single persistent entity: one row per indexed file,
// keyed by its unique file path, carrying the flattened chunk metadata and
// a description picked from the common text keys.
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
