package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cavaliercoder/grab"
	"github.com/google/uuid"
	"github.com/mholt/archiver"

	"github.com/geolake/stac-reader/service"
	"github.com/geolake/stac-reader/service/log"
)

// HTTPSStore implements Store for assets served over plain http(s)
type HTTPSStore struct {
	user  *string
	pword *string
}

// NewHTTPSStore creates a new Store with optional basic auth
func NewHTTPSStore(user, pword *string) *HTTPSStore {
	return &HTTPSStore{user: user, pword: pword}
}

// Name implements Store
func (h *HTTPSStore) Name() string {
	return "HTTPS"
}

// Download implements Store. Archives are unpacked into localDir.
func (h *HTTPSStore) Download(ctx context.Context, url, localDir string) error {
	localFile := filepath.Join(localDir, filepath.Base(url))
	req, err := grab.NewRequest(localFile, url)
	if err != nil {
		return fmt.Errorf("HTTPSStore.NewRequest: %w", err)
	}
	req = req.WithContext(ctx)

	if h.user != nil && h.pword != nil {
		req.HTTPRequest.SetBasicAuth(*h.user, *h.pword)
	}

	if err := download(ctx, req, filepath.Base(url), h.user != nil); err != nil {
		return fmt.Errorf("HTTPSStore.%w", err)
	}

	if isArchive(localFile) {
		defer os.Remove(localFile)
		if err := unarchive(localFile, localDir); err != nil {
			return fmt.Errorf("HTTPSStore.Unarchive: %w", err)
		}
	}
	return nil
}

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}

func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Add("Authorization", auth[0])
	}
	return nil
}

// download a file with display every 5%
func download(ctx context.Context, req *grab.Request, displayPrefix string, copyAuthOnRedirect bool) error {
	client := grab.NewClient()
	if copyAuthOnRedirect {
		client.HTTPClient.CheckRedirect = checkRedirectAndCopyAuth
	}
	resp := client.Do(req)

	displayProgress(ctx, displayPrefix, resp, 0.05)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download[%s]: %w", req.URL(), err)
		if resp.HTTPResponse == nil {
			return service.MakeTemporary(err)
		}
		switch resp.HTTPResponse.StatusCode {
		case 404:
			return ErrObjectNotFound{req.URL().String()}
		case 408, 429, 500, 501, 502, 503, 504:
			return service.MakeTemporary(err)
		default:
			return err
		}
	}
	return nil
}

func isArchive(localFile string) bool {
	switch filepath.Ext(localFile) {
	case ".zip", ".tar", ".tgz", ".gz":
		return true
	}
	return false
}

// unarchive file in a staging directory with basic check. All errors are temporary.
func unarchive(localZip, localDir string) error {
	tmpdir := filepath.Join(localDir, uuid.New().String())
	if err := os.MkdirAll(tmpdir, 0766); err != nil {
		return service.MakeTemporary(err)
	}
	defer os.RemoveAll(tmpdir)
	if err := archiver.Unarchive(localZip, tmpdir); err != nil {
		return service.MakeTemporary(err)
	}
	files, err := os.ReadDir(tmpdir)
	if err != nil {
		return service.MakeTemporary(err)
	}
	if len(files) == 0 {
		return service.MakeTemporary(fmt.Errorf("empty archive"))
	}
	for _, f := range files {
		os.Rename(filepath.Join(tmpdir, f.Name()), filepath.Join(localDir, f.Name()))
	}
	return nil
}
