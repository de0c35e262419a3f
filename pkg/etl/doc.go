// Package etl contains the starwatch jobs. Each job reads its work items from
// the store, resolves them through a batch.Runner and writes the resolved
// batch back in a single call.
//
//   - ConstellationJob renders one chart per constellation and updates
//     constellation.constellation_url.
//   - LocationJob gathers sunrise, sunset, an overhead star chart and the
//     moon phase for every city and inserts stargazing_status rows. Backfill
//     covers a run of consecutive dates in one batch.
//   - AuroraJob reads the AuroraWatch UK alert level and records camera and
//     naked-eye visibility per country in aurora_status.
//   - PictureJob stores NASA's astronomy picture of the day in apod.
package etl
