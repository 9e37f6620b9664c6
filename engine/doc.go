// Package engine defines the contract between pdfview and the PDF engine that
// does the real work: parsing, decryption, decoding and rasterisation.
//
// pdfview never parses PDF itself. A loaded document is reached through the
// [Document] and [Page] interfaces, and loading is tracked by a
// [LoadingTask], which carries the password and progress hook slots the
// loader wires before it waits for the document.
//
// # Loading
//
// An [Engine] returns a task immediately. Work starts on the first call to
// [LoadingTask.Wait] (or [LoadingTask.Start]), so hooks attached between Load
// and Wait observe every event:
//
//	task := eng.Load(ctx, engine.Params{Path: "report.pdf"})
//	task.SetProgressHook(func(loaded, total int64) { ... })
//	doc, err := task.Wait(ctx)
//
// # Passwords
//
// When a document is encrypted the engine calls the password hook with a
// retry callback and a [PasswordResponse] telling whether a password is
// needed for the first time or a supplied one was wrong. Loading stays
// suspended until retry is called or the context is cancelled.
//
// # Geometry
//
// [Box] describes a page in PDF units (1/72 inch). [Viewport] maps a box to
// device pixels for a scale and rotation.
package engine
