// package repositories persists the run journal.
//
// [RunRepository] implements models.Repository[*models.Run] with soft deletes and
// per-table sequence numbers. [OutcomeRepository] stores one row per processed track.
// [Journal] combines both into the recorder the pipeline engine reports to.
package repositories
