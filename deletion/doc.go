// Package deletion removes a document from every store that holds a piece
// of it.
//
// Each removal is attempted independently and the outcome of every step is
// collected in a Report. A failed step never blocks the others, so a
// deletion can succeed only in part:
//
//	report, err := coord.Delete(ctx, docID)
//	if err != nil {
//		return err // docID was malformed; nothing was attempted
//	}
//	if report.Status == deletion.StatusPartialSuccess {
//		log.Println(report.Errors)
//	}
//
// The original upload is shared by file name, so it is only removed once no
// other document refers to it.
package deletion
