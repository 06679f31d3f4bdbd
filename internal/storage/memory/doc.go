// Package memory provides the sparse in-memory byte store behind each
// vault device.
//
// A Store is a two-level array: a lazily allocated vector of qset segment
// slots, each slot either absent or a buffer of exactly quantum bytes.
// The logical address space is quantum*qset bytes; memory actually held
// tracks only the segments that were written.
//
// Contracts:
//
//   - Short reads: a Read never crosses a segment boundary. Absent
//     segments read as zero bytes.
//   - Short writes: a Write never crosses a segment boundary. Offsets at
//     or beyond capacity write nothing.
//   - Allocation failures surface as domain.ErrOutOfMemory and leave
//     earlier writes intact.
//
// Thread Safety:
//
// A Store is not safe for concurrent use. The owning device serializes
// every call under its lock. Budget is safe for concurrent use.
package memory
