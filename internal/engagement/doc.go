// Package engagement holds the pure engagement model for Sparks: the score
// function, the quality/temperature/stage classifiers, event application, the
// notification gate and owner-level analytics.
//
// Nothing in this package performs I/O. Persistence, retries and delivery
// live in service/tracker and notify; those packages call into a Model.
package engagement
