package objectstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/geolake/stac-reader/service/log"
)

// FTPStore implements Store for assets served over ftp
type FTPStore struct {
	user  string
	pword string
}

// NewFTPStore creates a new Store over an ftp account
func NewFTPStore(user, pword string) *FTPStore {
	return &FTPStore{user: user, pword: pword}
}

// Name implements Store
func (f *FTPStore) Name() string {
	return "FTP"
}

// writeCounter counts the bytes written to it and logs the progress of the
// copy every 5%. It implements the io.Writer interface and is passed into
// io.TeeReader.
type writeCounter struct {
	ctx      context.Context
	prefix   string
	size     int64
	written  int64
	progress float64
}

func (wc *writeCounter) Write(p []byte) (int, error) {
	wc.written += int64(len(p))
	if wc.size > 0 && float64(wc.written)/float64(wc.size) > wc.progress {
		log.Logger(wc.ctx).Sugar().Debugf("%s: %.2f%% %s/%s", wc.prefix, 100*float64(wc.written)/float64(wc.size), fmtBytes(wc.written), fmtBytes(wc.size))
		wc.progress += 0.05
	}
	return len(p), nil
}

// Download implements Store. The url is of the form ftp://host[:port]/path/to/object;
// the connection switches to tls on port 990 and archives are unpacked into localDir.
func (f *FTPStore) Download(ctx context.Context, url, localDir string) error {
	u, err := neturl.Parse(url)
	if err != nil {
		return fmt.Errorf("FTPStore: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":21"
	}
	object := strings.TrimPrefix(u.Path, "/")

	ftpOption := []ftp.DialOption{ftp.DialWithTimeout(5 * time.Second)}
	if u.Port() == "990" {
		ftpOption = append(ftpOption, ftp.DialWithTLS(&tls.Config{InsecureSkipVerify: true}))
	}
	c, err := ftp.Dial(host, ftpOption...)
	if err != nil {
		return fmt.Errorf("FTPStore.Dial: %w", err)
	}
	if err = c.Login(f.user, f.pword); err != nil {
		return fmt.Errorf("FTPStore.Login: %w", err)
	}
	defer c.Quit()

	size, _ := c.FileSize(object)

	r, err := c.Retr(object)
	if err != nil {
		return fmt.Errorf("FTPStore.Retr: %w", err)
	}
	defer r.Close()

	localFile := filepath.Join(localDir, filepath.Base(object))
	destFile, err := os.Create(localFile)
	if err != nil {
		return fmt.Errorf("FTPStore.Create: %w", err)
	}
	defer destFile.Close()

	counter := &writeCounter{ctx: ctx, prefix: filepath.Base(object), size: size}
	if _, err = io.Copy(destFile, io.TeeReader(r, counter)); err != nil {
		return fmt.Errorf("FTPStore.Copy: %w", err)
	}

	if isArchive(localFile) {
		defer os.Remove(localFile)
		if err := unarchive(localFile, localDir); err != nil {
			return fmt.Errorf("FTPStore.Unarchive: %w", err)
		}
	}
	return nil
}
