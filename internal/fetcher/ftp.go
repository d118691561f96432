package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher. Distributor price lists are often
// published on credentialed FTP drops; empty credentials fall back to
// anonymous login.
type FTPOptions struct {
	Timeout  time.Duration
	User     string
	Password string
}

// FTPFetcher downloads files over FTP.
type FTPFetcher struct {
	opts FTPOptions
}

func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous@"
	}
	return &FTPFetcher{opts: opts}
}

// Download retrieves the file behind ftpURL. Closing the returned reader
// also quits the underlying FTP session.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	addr, remote, err := splitFTPAddr(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: fetching", zap.String("addr", addr), zap.String("path", remote))

	conn, err := f.dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(remote)
	if err != nil {
		conn.Quit()
		return nil, eris.Wrapf(err, "ftp retrieve %s", remote)
	}
	return &ftpSession{resp: resp, conn: conn}, nil
}

// DownloadToFile stores the file behind ftpURL at dest and reports the
// number of bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL, dest string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer out.Close()

	n, err := io.Copy(out, rc)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}

func (f *FTPFetcher) dial(ctx context.Context, addr string) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "ftp dial %s", addr)
	}
	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

// splitFTPAddr turns an ftp:// URL into a dialable host:port and the remote
// file path. Port 21 is assumed when the URL carries none.
func splitFTPAddr(rawURL string) (addr, remote string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" {
		return "", "", eris.New("empty path in ftp url")
	}

	addr = u.Host
	if _, _, splitErr := net.SplitHostPort(addr); splitErr != nil {
		addr = net.JoinHostPort(addr, "21")
	}
	return addr, u.Path, nil
}

// ftpSession ties the data-transfer reader to its control connection so a
// single Close tears both down.
type ftpSession struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (s *ftpSession) Read(p []byte) (int, error) { return s.resp.Read(p) }

func (s *ftpSession) Close() error {
	respErr := s.resp.Close()
	quitErr := s.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}
