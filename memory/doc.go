// Package memory contains concrete core.Archive implementations. The
// archive is the narrow seam to the external long-term memory system: the
// coordination core only appends closed-group transcripts and reads them
// back; retrieval and synthesis over archived content happen outside this
// module.
//
// The in-memory implementation below suits tests and single-process
// deployments; a client for the external memory server plugs in at wiring
// time without touching calling code.
package memory
