// Package upload drives the single write path: posting a data file and, on
// success, pointing the shared scope at the new dataset.
//
// The controller is a small state machine (idle, uploading, succeeded,
// failed). Succeeded and failed are not terminal; a new upload re-enters
// uploading and clears the prior result. True transfer progress is not
// observable, so a synthetic indicator advances on a timer toward a ceiling
// and is forced to 100% once the transfer completes.
package upload
