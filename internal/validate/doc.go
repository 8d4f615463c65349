// Package validate turns raw event records into typed records or explains why
// it could not.
//
// Normalize never panics and never returns a Go error: each call yields a
// Result that is Accepted, Rejected with a Failure naming the field, or Expired
// for listings that already started before today.
package validate
