// Package model defines the records exchanged between stores, the query
// router and the user cache: streams (a per-user tree) and events (records
// tagged with one or more stream ids).
//
// The same types travel through every backend. Each backend maps them to its
// own storage form (SQL rows, BSON documents, JSON values) and back.
//
// Timestamps are seconds since the Unix epoch as float64, matching the
// client-facing wire format.
package model
