// Package file stores machine histories as JSON documents, either in a local
// directory or in an S3 bucket.
//
// Both stores implement historystore.Store. Each machine history is a single
// JSON array of {time, action, state} objects:
//
//	[{"time":1700000000,"action":"init","state":"draft"},{"time":1700000060,"action":"submit","state":"review"}]
//
// LocalStore writes through a temporary file and rename, so a crash never
// leaves a half-written history behind:
//
//	store, err := file.NewLocalStore("./var/history")
//
// S3Store keeps one object per machine under an optional key prefix and
// works with any S3-compatible service (MinIO, R2 and others):
//
//	store, err := file.NewS3Store(ctx, file.S3Config{
//	    Bucket:         "flowstate",
//	    Region:         "us-east-1",
//	    Endpoint:       "http://localhost:9000",
//	    ForcePathStyle: true,
//	})
//
// Append is a read-modify-write for both stores. It is serialized within one
// store value, not across processes; use the redis, pg or mongo backends when
// several processes write the same machine.
package file
