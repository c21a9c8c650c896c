// Package pagination drains cursor-paginated collection endpoints into a
// single ordered slice of records.
//
// Collection endpoints answer in one of three shapes, decoded once by
// DecodePage into a Page:
//
//   - a bare JSON array: all records, no further pages
//   - an envelope {"results": [...], "next": "<url>"|null}: follow next until empty
//   - a single JSON object: treated as a one-record collection
//
// Example usage:
//
//	drainer := pagination.NewDrainer(apiClient.Pages(sess), pagination.DefaultConfig())
//	offices, err := drainer.Drain(ctx, "/offices/")
//
// The drainer:
//   - Fetches pages strictly in order (page N+1 only after page N's next is known)
//   - Resolves relative next links against the current page URL
//   - Aborts on the first failure and discards everything accumulated so far
//   - Stops on cursor loops and on a page budget, so a drain always terminates
//
// DrainAll runs several independent drains concurrently and joins them.
package pagination
