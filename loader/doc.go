// Package loader resolves sources into loaded documents through an engine
// and a bounded instance cache.
//
// # Transform
//
// [Loader.Transform] is the read-through entry point:
//
//   - an absent source resolves to nil without touching the cache;
//   - a cached source returns the cached [Handle] as is, without invoking the
//     engine or wiring hooks again;
//   - a [source.Loaded] source is wrapped in a Handle with no task and cached;
//   - any other source is loaded by the engine. The password and progress
//     hooks are attached to the loading task before the loader waits on it.
//
// A successful load is inserted into the cache exactly once. Failures go to
// [Hooks.Error] when it is set (Transform then returns nil, nil) and are
// returned otherwise.
//
// Concurrent Transform calls for the same uncached source each run their own
// load unless the loader was built [WithSingleFlight].
//
// # Teardown
//
// [Clear] detaches the hooks and destroys the document. It does not remove
// the handle from the cache, so a cleared handle may still be returned by
// later Transform calls until it is evicted.
package loader
