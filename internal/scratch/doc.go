// Package scratch manages the transient files a compression request works on.
//
// Every request owns one input file (the uploaded audio) and at most one output
// file (the transcoded MP3). Paths are reserved inside a single scratch
// directory using random UUIDs and exclusive creation, so concurrent requests
// never share a path. Files are released by the request that allocated them;
// Release is idempotent and never panics, which makes it safe to call from
// deferred cleanup on every exit path.
//
// Stat calls are retried on ESTALE so the scratch directory may live on an NFS
// mount. Purge removes files left behind by a crashed process and is run at
// startup and shutdown.
package scratch
