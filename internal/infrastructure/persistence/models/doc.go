// Package models contains GORM persistence models that map to database tables.
// Models are kept apart from domain types so the domain layer stays free of
// ORM tags.
package models
