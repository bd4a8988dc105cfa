// Package transfer moves job input from remote storage into an exclusively
// owned local workspace and sends finished output back.
//
// Fetch allocates the workspace, downloads the source folder, drops every
// file that is not a mix file and checks the integrity of the rest. Any
// failure deletes the workspace before Fetch returns. Upload never returns an
// error value; it reports a structured UploadResult the caller folds into job
// state. Release is idempotent and must run on every exit path of a job pass.
package transfer
