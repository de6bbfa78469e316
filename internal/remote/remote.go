// Package remote offloads encodes to an SSH host: the source is
// shipped over SFTP, ffmpeg runs remotely, and the result is pulled
// back into the local staging directory. Any connection-setup failure
// disables the remote path for the rest of the run; files then fall
// back to local encoding.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"reconform/internal/config"
	"reconform/internal/process"
)

// Transport is the file-transfer and execution surface of the remote
// host. Implemented by SSH for real connections and by fakes in
// tests.
type Transport interface {
	Upload(local, remotePath string) error
	Download(remotePath, local string) error
	Remove(remotePath string) error
	Exec(ctx context.Context, argv []string) (process.Result, error)
	Close() error
}

// SSH is a Transport over an established SSH connection.
type SSH struct {
	client *ssh.Client
	files  *sftp.Client
}

// Dial connects and opens an SFTP session. Either a key file or a
// password must be configured; the password doubles as the key
// passphrase when both are set.
func Dial(cfg config.Remote) (*SSH, error) {
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback(),
	}

	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := ssh.Dial("tcp", address, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", address, err)
	}

	files, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open sftp session: %w", err)
	}

	return &SSH{client: client, files: files}, nil
}

func authMethods(cfg config.Remote) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil && cfg.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(cfg.Password))
		}
		if err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("remote: no key file or password configured")
	}
	return methods, nil
}

// hostKeyCallback verifies against the user's known_hosts when one
// exists. Without it the host key is accepted blind, matching how the
// transfer host is typically provisioned on the same LAN.
func hostKeyCallback() ssh.HostKeyCallback {
	path, err := config.ExpandPath("~/.ssh/known_hosts")
	if err == nil {
		if callback, err := knownhosts.New(path); err == nil {
			return callback
		}
	}
	return ssh.InsecureIgnoreHostKey()
}

// Upload copies a local file to the remote path, truncating any
// previous leftover.
func (s *SSH) Upload(local, remotePath string) error {
	in, err := os.Open(local)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := s.files.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote %s: %w", remotePath, err)
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return fmt.Errorf("upload %s: %w", remotePath, err)
	}
	return out.Close()
}

// Download copies a remote file to the local path.
func (s *SSH) Download(remotePath, local string) error {
	in, err := s.files.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote %s: %w", remotePath, err)
	}
	defer in.Close()

	out, err := os.Create(local)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := in.WriteTo(out); err != nil {
		return fmt.Errorf("download %s: %w", remotePath, err)
	}
	return out.Close()
}

// Remove deletes a remote file. Missing files are not an error.
func (s *SSH) Remove(remotePath string) error {
	err := s.files.Remove(remotePath)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Exec runs argv on the remote host and returns its combined output
// and exit status. As with local runs, a non-zero exit is reported in
// the result, not as an error.
func (s *SSH) Exec(ctx context.Context, argv []string) (process.Result, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return process.Result{}, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGKILL)
		case <-done:
		}
	}()

	output, err := session.CombinedOutput(shellJoin(argv))
	result := process.Result{Output: string(output)}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		var missing *ssh.ExitMissingError
		if errors.As(err, &missing) {
			// Killed without reporting a status; treat like a
			// signal death.
			result.ExitCode = -1
			return result, nil
		}
		return result, fmt.Errorf("remote exec: %w", err)
	}
	return result, nil
}

// Close tears down the SFTP session and the connection.
func (s *SSH) Close() error {
	var errs []error
	if s.files != nil {
		errs = append(errs, s.files.Close())
	}
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	return errors.Join(errs...)
}

// shellJoin renders argv for the remote shell. Arguments with shell
// metacharacters are single-quoted; everything the builder emits is
// already structured, so this only guards paths.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\n'\"\\$&|;<>()*?[]#~`") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
