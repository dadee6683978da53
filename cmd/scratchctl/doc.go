// Command scratchctl is an operator utility for the audio compressor.
//
// It supports the following operations:
//   - status: Show the scratch directory contents and ffmpeg availability
//   - purge: Remove orphaned scratch files
//   - compress: Transcode a local file with the speech profile
//
// Usage:
//
//	scratchctl <command> [args]
//
// Commands:
//
//	status              Print the scratch directory, the number and total
//	                    size of files in it, and whether ffmpeg and ffprobe
//	                    can be found.
//
//	purge               Delete upload and output files left in the scratch
//	                    directory. Only run this while the server is stopped;
//	                    files of in-flight requests would be removed too.
//
//	compress IN OUT     Run the same ffmpeg job the server runs, reading IN
//	                    and writing OUT, and print the size reduction.
//
// Environment:
//
// The same variables as the server are read (SCRATCH_DIR, FFMPEG_PATH,
// FFPROBE_PATH, TRANSCODE_TIMEOUT, ...), including an optional .env file.
package main
