package iso

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/paranoidnas/media/internal/constants"
	"github.com/paranoidnas/media/internal/utils"
	"github.com/twpayne/go-vfs/v4"
)

// Progress receives the bytes done out of the total, -1 when unknown.
type Progress interface {
	Update(done, total int64)
}

// Fetcher provides a local copy of the base installer image.
type Fetcher interface {
	Fetch(ctx context.Context, p Progress) (string, error)
}

// latest point release of each supported live server release
var pointReleases = map[string]string{
	"20.04": "20.04.6",
	"22.04": "22.04.5",
	"24.04": "24.04.1",
}

// UbuntuServerURL is the download location of the live server image of a release.
func UbuntuServerURL(release string) string {
	point, ok := pointReleases[release]
	if !ok {
		point = release
	}
	return fmt.Sprintf("https://releases.ubuntu.com/%s/ubuntu-%s-live-server-amd64.iso", release, point)
}

// UbuntuServerFetcher downloads the Ubuntu live server image into the working
// dir. An image already there is reused.
type UbuntuServerFetcher struct {
	FS         vfs.FS
	WorkingDir string
	Release    string
	// URL overrides the release download location.
	URL    string
	Client *http.Client
}

func (u *UbuntuServerFetcher) url() string {
	if u.URL != "" {
		return u.URL
	}
	return UbuntuServerURL(u.Release)
}

// Fetch returns the path of the image on the fetcher filesystem.
func (u *UbuntuServerFetcher) Fetch(ctx context.Context, p Progress) (string, error) {
	url := u.url()
	target := filepath.Join(u.WorkingDir, filepath.Base(url))
	if info, err := u.FS.Stat(target); err == nil && info.Size() > 0 {
		utils.Log.Info().Str("what", target).Msg("Reusing downloaded installer image")
		return target, nil
	}
	if err := utils.CreateIfNotExists(u.FS, u.WorkingDir); err != nil {
		return "", err
	}

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", constants.ErrFetch, err)
	}
	utils.Log.Info().Str("what", url).Msg("Downloading installer image")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", constants.ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %s", constants.ErrFetch, url, resp.Status)
	}

	partial := target + ".part"
	f, err := u.FS.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, constants.DefaultFileMode)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(f, &progressReader{r: resp.Body, total: resp.ContentLength, p: p})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = u.FS.Remove(partial)
		return "", fmt.Errorf("%w: %w", constants.ErrFetch, err)
	}
	if err := u.FS.Rename(partial, target); err != nil {
		return "", err
	}
	return target, nil
}

type progressReader struct {
	r     io.Reader
	p     Progress
	done  int64
	total int64
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	pr.done += int64(n)
	if pr.p != nil && (n > 0 || errors.Is(err, io.EOF)) {
		pr.p.Update(pr.done, pr.total)
	}
	return n, err
}
