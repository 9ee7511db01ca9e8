// Package repository keeps a registry of package archives synchronized with
// the contents of one directory.
//
// A Repository composes four parts:
//
//   - Scanner lists the directory, drops disabled and ignored entries and
//     classifies the rest through a descriptor.Inspector.
//   - Reconciler diffs a scan Snapshot against the store, applies the
//     mutations and notifies listeners.
//   - Poller runs scan+reconcile on a gocron timer whenever the directory
//     modification time advances.
//   - Nudger (optional) turns fsnotify events into immediate poller ticks.
//
// All mutations happen under the poller's lock, one pass at a time. Readers
// go straight to the store and may observe a pass half-applied.
package repository
