// Package memory derives a Go heap limit from the container memory limit.
//
// The compressor process is small, but every request runs an ffmpeg child in
// the same container. A GOMEMLIMIT derived from MEMORY_LIMIT keeps the Go
// heap (multipart buffers mostly) inside its share so the kernel OOM killer
// does not pick ffmpeg or the server itself.
//
// Kubernetes can pass the limit through the Downward API:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//
// An explicit GOMEMLIMIT always wins; the runtime has already applied it
// before main runs.
package memory
