// Package checkpoint records which batch jobs have already succeeded so an
// interrupted batch can be resumed without re-running them.
//
// A checkpoint is bound to the job list it was created for by a digest of
// its commands. Resuming with a changed list backs up the old checkpoint
// and starts a fresh one.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/retrying/checkpoints/
//   - macOS: ~/Library/Application Support/retrying/checkpoints/
//   - Windows: %APPDATA%/retrying/checkpoints/
//
// Files are written atomically through a temporary file and rename.
package checkpoint
