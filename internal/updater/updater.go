// Package updater checks GitHub releases for a newer gemini-planner build
// and replaces the running binary with it.
//
// The archive for the current platform is downloaded, the binary is pulled
// out of it, written next to the executable and renamed over it. A running
// MCP server keeps the old image until it is restarted.
package updater

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/gemini-planner/internal/logging"
)

const (
	// DefaultAPIBase is the GitHub REST API root.
	DefaultAPIBase = "https://api.github.com"
	// DefaultBinary is the executable name inside release archives.
	DefaultBinary = "gemini-planner"

	checkTimeout    = 10 * time.Second
	maxArchiveBytes = 200 << 20
)

// ErrUpToDate is returned by SelfUpdate when no newer release exists.
var ErrUpToDate = errors.New("already at the latest version")

// ReleaseInfo is the subset of a GitHub release the updater reads.
type ReleaseInfo struct {
	TagName string  `json:"tag_name"`
	HTMLURL string  `json:"html_url"`
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Result describes how the running version relates to the latest release.
type Result struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
}

// Checker talks to the releases API of one repository.
type Checker struct {
	Repo    string
	Binary  string
	APIBase string
	HTTP    *http.Client
	Logger  *slog.Logger

	// executable locates the file SelfUpdate replaces.
	executable func() (string, error)
	goos       string
	goarch     string
}

// New returns a Checker for repo ("owner/name").
func New(repo string, logger *slog.Logger) *Checker {
	return &Checker{
		Repo:       repo,
		Binary:     DefaultBinary,
		APIBase:    DefaultAPIBase,
		HTTP:       &http.Client{Timeout: checkTimeout},
		Logger:     logging.OrDefault(logger),
		executable: os.Executable,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
}

// Latest fetches the newest published release.
func (c *Checker) Latest(ctx context.Context, current string) (*ReleaseInfo, error) {
	if strings.TrimSpace(c.Repo) == "" {
		return nil, errors.New("no release repository configured")
	}
	url := strings.TrimRight(c.APIBase, "/") + "/repos/" + c.Repo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.Binary+"/"+current)

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("releases API returned %d", resp.StatusCode)
	}
	var release ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("parsing release info: %w", err)
	}
	return &release, nil
}

// Check compares current against the latest release.
func (c *Checker) Check(ctx context.Context, current string) (*Result, error) {
	release, err := c.Latest(ctx, current)
	if err != nil {
		return &Result{CurrentVersion: normalizeVersion(current)}, err
	}
	return c.result(current, release), nil
}

// Notify runs Check and logs a notice when a newer release exists.
// Failures are logged at debug; the check is best effort.
func (c *Checker) Notify(ctx context.Context, current string) {
	res, err := c.Check(ctx, current)
	if err != nil {
		c.Logger.Debug("update check failed", "error", err)
		return
	}
	if res.UpdateAvailable {
		c.Logger.Info("update available",
			"current", res.CurrentVersion,
			"latest", res.LatestVersion,
			"release", res.ReleaseURL,
			"hint", "run: "+c.Binary+" update")
	}
}

// SelfUpdate downloads the latest release for this platform and swaps it in
// for the running executable. It returns ErrUpToDate when there is nothing
// newer.
func (c *Checker) SelfUpdate(ctx context.Context, current string) (*Result, error) {
	release, err := c.Latest(ctx, current)
	if err != nil {
		return nil, err
	}
	res := c.result(current, release)
	if !res.UpdateAvailable {
		return res, fmt.Errorf("%w (%s)", ErrUpToDate, current)
	}

	assetName := c.assetName(res.LatestVersion)
	var downloadURL string
	for _, a := range release.Assets {
		if a.Name == assetName {
			downloadURL = a.BrowserDownloadURL
			break
		}
	}
	if downloadURL == "" {
		return res, fmt.Errorf("no release asset for %s/%s (looking for %s)", c.goos, c.goarch, assetName)
	}

	archive, err := c.download(ctx, downloadURL)
	if err != nil {
		return res, err
	}
	binary, err := c.extract(archive, assetName)
	if err != nil {
		return res, fmt.Errorf("extracting binary: %w", err)
	}
	if err := c.replace(binary); err != nil {
		return res, err
	}
	c.Logger.Info("binary updated", "from", res.CurrentVersion, "to", res.LatestVersion)
	return res, nil
}

func (c *Checker) result(current string, release *ReleaseInfo) *Result {
	res := &Result{
		CurrentVersion: normalizeVersion(current),
		LatestVersion:  normalizeVersion(release.TagName),
		ReleaseURL:     release.HTMLURL,
	}
	res.UpdateAvailable = isNewer(res.CurrentVersion, res.LatestVersion)
	return res
}

func (c *Checker) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	if len(data) > maxArchiveBytes {
		return nil, fmt.Errorf("archive exceeds %d bytes", maxArchiveBytes)
	}
	return data, nil
}

// replace writes binary beside the executable and renames it into place.
func (c *Checker) replace(binary []byte) error {
	execPath, err := c.executable()
	if err != nil {
		return fmt.Errorf("finding current executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}

	tmp, err := os.CreateTemp(filepath.Dir(execPath), "."+filepath.Base(execPath)+".*.new")
	if err != nil {
		return fmt.Errorf("creating temp binary: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(binary); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing new binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing new binary: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("marking binary executable: %w", err)
	}

	// Windows refuses to overwrite a running image but allows renaming it.
	if c.goos == "windows" {
		oldPath := execPath + ".old"
		_ = os.Remove(oldPath)
		if err := os.Rename(execPath, oldPath); err != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("backing up current binary: %w", err)
		}
	}
	if err := os.Rename(tmpPath, execPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing binary: %w", err)
	}
	return nil
}

func (c *Checker) extract(archive []byte, assetName string) ([]byte, error) {
	if strings.HasSuffix(assetName, ".zip") {
		return extractFromZip(archive, c.Binary)
	}
	return extractFromTarGz(bytes.NewReader(archive), c.Binary)
}

// assetName matches the release archive naming: <binary>_<version>_<os>_<arch>.<ext>.
func (c *Checker) assetName(version string) string {
	ext := "tar.gz"
	if c.goos == "windows" {
		ext = "zip"
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", c.Binary, version, c.goos, c.goarch, ext)
}

func (c *Checker) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func isBinary(name, binary string) bool {
	base := filepath.Base(name)
	return base == binary || base == binary+".exe"
}

func extractFromTarGz(r io.Reader, binary string) ([]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !isBinary(hdr.Name, binary) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s from tar: %w", binary, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s binary not found in archive", binary)
}

func extractFromZip(archive []byte, binary string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isBinary(f.Name, binary) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s in zip: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s from zip: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s binary not found in archive", binary)
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewer reports whether latest is a higher release than current.
// Development builds never compare as outdated.
func isNewer(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}
	return compareVersions(latest, current) > 0
}

// compareVersions orders major.minor.patch triples. A pre-release suffix
// ("-rc1") sorts before the plain release of the same triple.
func compareVersions(a, b string) int {
	ca, pa := splitVersion(a)
	cb, pb := splitVersion(b)
	for i := range ca {
		if ca[i] != cb[i] {
			if ca[i] > cb[i] {
				return 1
			}
			return -1
		}
	}
	switch {
	case pa == pb:
		return 0
	case pa == "":
		return 1
	case pb == "":
		return -1
	case pa > pb:
		return 1
	default:
		return -1
	}
}

func splitVersion(v string) ([3]int, string) {
	var core [3]int
	v, pre, _ := strings.Cut(v, "-")
	v, _, _ = strings.Cut(v, "+")
	for i, part := range strings.SplitN(v, ".", 3) {
		core[i] = leadingInt(part)
	}
	return core, pre
}

// leadingInt parses the digits at the start of s; "3rc1" is 3.
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
