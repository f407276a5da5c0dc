// Package sftp delivers finished export artifacts to a remote host over
// SFTP. Delivery is strictly post-run and best-effort: the local artifact is
// already complete when upload starts, so a failed upload is reported but
// never invalidates the run.
package sftp
