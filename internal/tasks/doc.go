// Package tasks runs background housekeeping on a backlite queue: purging
// accounts that never finished authenticator enrollment and trimming the
// audit log.
package tasks
