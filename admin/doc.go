// Package admin defines the administrative identity records and the
// repository contracts the engine persists them through.
//
// The package carries no storage code. Implementations live in
// store/sqlstore; tests and embedders may supply their own.
package admin
