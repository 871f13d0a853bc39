// Package session serializes access to individual editing sessions. Every
// state-changing operation on one session ID runs under that ID's lock
// (at-most-one-writer-per-session); operations on different IDs proceed in
// parallel. An optional distributed locker extends the guarantee across
// replicas sharing one store.
package session
