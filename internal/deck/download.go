package deck

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ListFileName is the published index of downloadable deck archives.
const ListFileName = "list.txt"

// Downloader installs decks from a published archive URL. The remote layout
// is a list file naming one zip archive per deck, each archive holding the
// card images.
type Downloader struct {
	baseURL string
	store   *Store
	client  *http.Client
	logger  *zap.Logger
}

// NewDownloader creates a downloader installing into the given store.
func NewDownloader(baseURL string, store *Store, logger *zap.Logger) *Downloader {
	return &Downloader{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		store:   store,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Available fetches the list of downloadable deck archives, one file name per
// line.
func (d *Downloader) Available(ctx context.Context) ([]string, error) {
	resp, err := d.get(ctx, d.baseURL+"/"+ListFileName)
	if err != nil {
		return nil, fmt.Errorf("fetch deck list: %w", err)
	}
	defer resp.Body.Close()

	var files []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			files = append(files, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read deck list: %w", err)
	}
	return files, nil
}

// Install downloads one deck archive and unpacks its images into the store.
// The deck name is the archive file name without the .zip suffix.
func (d *Downloader) Install(ctx context.Context, fileName string) error {
	name := strings.TrimSuffix(fileName, ".zip")
	if name == "" || name == fileName {
		return fmt.Errorf("deck archive %q: expected a .zip file name", fileName)
	}

	resp, err := d.get(ctx, d.baseURL+"/"+fileName)
	if err != nil {
		return fmt.Errorf("fetch deck %q: %w", name, err)
	}
	defer resp.Body.Close()

	archive, err := os.CreateTemp("", "bluememory-deck-*.zip")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	size, err := io.Copy(archive, resp.Body)
	if err != nil {
		return fmt.Errorf("download deck %q: %w", name, err)
	}

	if err := d.unpack(archive.Name(), name); err != nil {
		return err
	}

	d.logger.Info("deck installed",
		zap.String("deck", name),
		zap.Int64("archive_bytes", size),
	)
	return nil
}

func (d *Downloader) unpack(archivePath, name string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open deck archive: %w", err)
	}
	defer reader.Close()

	dir := filepath.Join(d.store.dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create deck directory: %w", err)
	}

	for _, file := range reader.File {
		base := filepath.Base(file.Name)
		if file.FileInfo().IsDir() || !strings.HasSuffix(base, ".png") {
			continue
		}
		if err := extractFile(file, filepath.Join(dir, base)); err != nil {
			return fmt.Errorf("unpack deck %q: %w", name, err)
		}
	}
	return nil
}

func extractFile(file *zip.File, dest string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp, nil
}
