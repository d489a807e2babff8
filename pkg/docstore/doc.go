// Package docstore is a file-backed JSON document store.
//
// Documents live at <data-dir>/<namespace>/<key>, one file per document,
// holding exactly the compact JSON encoding of the stored value. A second,
// read-only public root serves static assets.
//
// Every operation returns a [Result]; nothing panics across the store
// boundary. Callers check [Result.Failed] and, on failure, inspect
// [Error.Kind] (or use errors.Is with [ErrConflict], [ErrNotFound], ...):
//
//	res := store.Create("users", "1.json", user)
//	if res.Failed() {
//	    if errors.Is(res.Err, docstore.ErrConflict) { ... }
//	    return res.Err
//	}
//
// Consistency comes from the file system only: Create uses exclusive create,
// Update opens an existing file and truncates it before rewriting. Concurrent
// updates of one key race unless [Config.LockWrites] is set, and a reader
// racing a truncating update may see an empty or partial file unless
// [Config.UpdateMode] is [UpdateAtomic].
package docstore
