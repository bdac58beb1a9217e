// pkg/fetch/sftp.go

package fetch

import (
	"context"
	"io"
	"net/url"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type sftpFetcher struct {
	host string
	path string

	sync.Mutex
	conn   *ssh.Client
	client *sftp.Client
}

func newSftpFetcher(u *url.URL) (*sftpFetcher, error) {
	host := u.Host
	if u.Port() == "" {
		host += ":22"
	}
	f := &sftpFetcher{host: host, path: u.Path}

	var username, password string
	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
	}
	if username == "" {
		cur, err := user.Current()
		if err != nil {
			return nil, err
		}
		username = cur.Username
	}
	if password == "" {
		password = os.Getenv("SFTP_PASSWORD")
	}
	config := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         time.Second * 10,
	}
	conn, err := ssh.Dial("tcp", host, config)
	if err != nil {
		return nil, errors.WithMessagef(err, "dial %s", host)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, errors.WithMessagef(err, "sftp %s", host)
	}
	f.conn = conn
	f.client = client
	return f, nil
}

func (s *sftpFetcher) String() string { return "sftp://" + s.host + s.path }

func (s *sftpFetcher) Fetch(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	s.Lock()
	defer s.Unlock()
	f, err := s.client.Open(s.path)
	if err != nil {
		return nil, errors.WithMessagef(err, "open %s", s.path)
	}
	if _, err = f.Seek(off, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &sftpRange{f: f, r: io.LimitReader(f, length)}, nil
}

func (s *sftpFetcher) Size(ctx context.Context) (int64, error) {
	s.Lock()
	defer s.Unlock()
	st, err := s.client.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (s *sftpFetcher) Close() error {
	s.Lock()
	defer s.Unlock()
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

type sftpRange struct {
	f *sftp.File
	r io.Reader
}

func (r *sftpRange) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *sftpRange) Close() error               { return r.f.Close() }
