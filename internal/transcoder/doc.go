// Package transcoder re-encodes uploaded audio to a compact speech profile
// using FFmpeg.
//
// Every job runs the same fixed invocation: mono, 16 kHz, 32 kbps MP3 encoded
// with libmp3lame. The ffmpeg process is started out of band and its exit is
// delivered once on a buffered channel; the caller waits on that channel, a
// per-job timer and its context, whichever fires first. On timeout or
// cancellation the process is killed and reaped before Transcode returns, so no
// child outlives the request.
//
// Concurrency is bounded by a slot semaphore. Waiting for a slot honors the
// caller's context.
//
// Transcode never deletes files. A failed job may leave a partial output file
// behind; releasing it is the caller's job.
//
// Probe reads stream information with ffprobe and is used to optionally verify
// the encoded output.
package transcoder
