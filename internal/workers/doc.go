/*
Package workers sizes the transcoding slot pool for containerized environments.

ffmpeg audio encoding is CPU-bound, so the default is one concurrent process
per available CPU. Availability is read from runtime.GOMAXPROCS, which Go 1.19+
sets from the container CPU limit, rather than runtime.NumCPU, which reports
the host:

	// Pod limited to 2 CPUs on a 64-core node
	workers.ForCPU(0) // 2
	runtime.NumCPU()  // 64

# Usage

	slots := workers.Slots(cfg.MaxConcurrentTranscodes)

A positive MAX_CONCURRENT_TRANSCODES wins. Otherwise the CPU-derived count is
used, which operators can pin with TRANSCODE_WORKERS:

	env:
	- name: TRANSCODE_WORKERS
	  value: "4"

All functions are safe for concurrent use.
*/
package workers
