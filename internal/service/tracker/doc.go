// Package tracker implements the Spark lifecycle and engagement ingestion.
//
// Every write is a compare-and-swap: the service reads a record, applies the
// change through the engagement model, and writes it back carrying the version
// it read. A store that sees a different version rejects the write with
// ErrConflict and the service re-reads and re-applies, up to a bounded number
// of attempts. Different records never contend.
//
// Repository implementations live in repository/memory, repository/sqlstore,
// repository/redisstore and repository/dynamo.
package tracker
