// Package pagination turns page-numbered collection endpoints into lazy
// sequences.
//
// A Sequence fetches one page ahead of consumption. Each pull either returns a
// buffered item, reports that a page fetch is still pending, or reports the end
// of the sequence. Exhaustion is detected only by an empty page, never by a
// page being shorter than the requested page size, so the last page with items
// is always followed by one extra round trip.
//
// Example usage:
//
//	seq := pagination.NewSequence("crates", 1, fetchPage, logger)
//	for {
//		item, err := seq.Next(ctx)
//		if errors.Is(err, pagination.Done) {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		// use item
//	}
//
// Sequence states:
//   - Idle: nothing buffered, no fetch in flight
//   - FetchPending: exactly one page fetch in flight
//   - Buffered: items from the last page waiting to be pulled
//   - Closed: terminal; every pull reports the end
//
// Drain walks a collection from page 1 until an empty page and returns the
// concatenation of every page.
package pagination
