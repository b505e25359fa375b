/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors, plus portable access to file change times.

# Purpose

Image libraries are frequently kept on network mounts. This package wraps
os.Stat, os.Open and os.ReadDir with retry logic for transient NFS failures,
particularly ESTALE (stale file handle) errors that occur when NFS-mounted
files are accessed during network issues or server-side changes.

# Usage

	info, err := filesystem.StatWithRetry("/nfs/img/a.png", filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	ctime := filesystem.ChangeTime(info)

# Retry Behavior

The retry logic implements exponential backoff with the following defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only NFS stale file handle errors (ESTALE) trigger retries. All other errors
fail immediately without retry attempts.

# Change time

ChangeTime reports the inode change time on Linux and the BSDs, the creation
time on Windows, and falls back to the modification time elsewhere.
*/
package filesystem
