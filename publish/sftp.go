// Package publish uploads the history file to an SFTP drop after each run.
package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"github.com/use-agent/lmstrack/config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const dialTimeout = 20 * time.Second

// Uploader pushes files to one SFTP destination.
type Uploader struct {
	cfg config.PublishConfig
}

// NewUploader returns an Uploader for cfg.
func NewUploader(cfg config.PublishConfig) *Uploader {
	return &Uploader{cfg: cfg}
}

// UploadFile copies localPath to RemoteDir/remoteFileName, creating RemoteDir
// if needed.
func (u *Uploader) UploadFile(ctx context.Context, localPath, remoteFileName string) error {
	cfg := u.cfg
	if cfg.SFTPHost == "" || cfg.SFTPUser == "" || cfg.SFTPPass == "" {
		return fmt.Errorf("sftp: missing env SFTP_HOST / SFTP_USER / SFTP_PASS")
	}
	if cfg.SFTPPort <= 0 {
		cfg.SFTPPort = 22
	}
	if cfg.SFTPRemoteDir == "" {
		cfg.SFTPRemoteDir = "/"
	}
	if remoteFileName == "" {
		remoteFileName = filepath.Base(localPath)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sftp: open local file: %w", err)
	}
	defer src.Close()

	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		return err
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.SFTPUser,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.SFTPPass)},
		HostKeyCallback: hostKey,
		Timeout:         dialTimeout,
	}
	addr := net.JoinHostPort(cfg.SFTPHost, fmt.Sprint(cfg.SFTPPort))

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("sftp: dial error: %w", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("sftp: ssh handshake: %w", err)
	}
	sshClient := ssh.NewClient(c, chans, reqs)
	defer sshClient.Close()

	sftpCli, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	defer sftpCli.Close()

	if err := sftpCli.MkdirAll(cfg.SFTPRemoteDir); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", cfg.SFTPRemoteDir, err)
	}

	remotePath := path.Join(cfg.SFTPRemoteDir, remoteFileName)
	dst, err := sftpCli.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp: create remote file: %w", err)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return fmt.Errorf("sftp: upload copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("sftp: close remote file: %w", err)
	}

	slog.Info("file published", "host", cfg.SFTPHost, "path", remotePath, "bytes", n)
	return nil
}

func hostKeyCallback(cfg config.PublishConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := cfg.KnownHostsFile
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("sftp: locate known_hosts: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("sftp: load known_hosts %s: %w", file, err)
	}
	return cb, nil
}
