package ports

import "context"

// RemoteExecutor runs a shell command on a remote host.
type RemoteExecutor interface {
	Exec(ctx context.Context, command string) (stdout, stderr string, err error)
}
