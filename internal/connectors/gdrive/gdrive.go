// Package gdrive implements the Google Drive Source Capability: delta sync
// via a change-page token with fallback to a full scan, rename-only skip
// detection, and Workspace-file export-to-PDF, grounded on
// original_source's app/connectors/google_drive/*.py.
package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/surfsense-core/knowledge-core/internal/connectors"
	"github.com/surfsense-core/knowledge-core/internal/store"
)

const (
	mimeGoogleDoc      = "application/vnd.google-apps.document"
	mimeGoogleSheet    = "application/vnd.google-apps.spreadsheet"
	mimeGoogleSlide    = "application/vnd.google-apps.presentation"
	mimeGoogleFolder   = "application/vnd.google-apps.folder"
	mimeGoogleShortcut = "application/vnd.google-apps.shortcut"
)

var exportFormats = map[string]string{
	mimeGoogleDoc:   "application/pdf",
	mimeGoogleSheet: "application/pdf",
	mimeGoogleSlide: "application/pdf",
}

func isGoogleWorkspaceFile(mime string) bool {
	return len(mime) >= len("application/vnd.google-apps") && mime[:len("application/vnd.google-apps")] == "application/vnd.google-apps"
}

func shouldSkipFile(mime string) bool {
	return mime == mimeGoogleFolder || mime == mimeGoogleShortcut
}

// File mirrors the subset of the Drive API's file resource the indexer
// needs to decide rename-only vs. full re-ETL.
type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime"`
	MD5Checksum  string `json:"md5Checksum"`
	Trashed      bool   `json:"trashed"`
}

// KnownFile is what the registry's stored metadata looks like for a
// previously indexed file, used to compare against the current listing.
type KnownFile struct {
	MD5Checksum  string
	ModifiedTime string
	Name         string
}

// Connector fulfils connectors.SourceCapability against the Drive REST API
// using a caller-provided oauth2 token source.
type Connector struct {
	httpClient *http.Client
	known      map[string]KnownFile // fileID -> last known metadata
}

// NewConnector builds a Connector from a decrypted config map; "access_token"
// is required, produced by the registry's RefreshCredentials flow.
func NewConnector(cfg map[string]any, known map[string]KnownFile) (*Connector, error) {
	token, _ := cfg["access_token"].(string)
	if token == "" {
		return nil, fmt.Errorf("gdrive: missing access_token")
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := oauth2.NewClient(context.Background(), src)
	if known == nil {
		known = map[string]KnownFile{}
	}
	return &Connector{httpClient: client, known: known}, nil
}

type changesResponse struct {
	NextPageToken    string `json:"nextPageToken"`
	NewStartPageToken string `json:"newStartPageToken"`
	Changes          []struct {
		FileID  string `json:"fileId"`
		Removed bool   `json:"removed"`
		File    *File  `json:"file"`
	} `json:"changes"`
}

// FetchWindow implements connectors.SourceCapability. cursor, when
// non-empty, is treated as a Drive change-page token (delta sync); an
// empty cursor triggers a full scan of the first page of files in the
// window, grounded on change_tracker.py's get_changes/fetch_all_changes.
func (c *Connector) FetchWindow(ctx context.Context, cursor connectors.Cursor, window connectors.Window) ([]connectors.RawItem, connectors.Cursor, error) {
	if cursor != "" {
		return c.fetchDelta(ctx, cursor)
	}
	return c.fetchFullScan(ctx, window)
}

func (c *Connector) fetchDelta(ctx context.Context, cursor connectors.Cursor) ([]connectors.RawItem, connectors.Cursor, error) {
	reqURL := fmt.Sprintf(
		"https://www.googleapis.com/drive/v3/changes?pageToken=%s&pageSize=100&fields=nextPageToken,newStartPageToken,changes(fileId,removed,file(id,name,mimeType,modifiedTime,md5Checksum,trashed))&supportsAllDrives=true&includeItemsFromAllDrives=true",
		cursor,
	)
	var resp changesResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, "", err
	}

	items := make([]connectors.RawItem, 0, len(resp.Changes))
	for _, ch := range resp.Changes {
		if ch.Removed || ch.File == nil || ch.File.Trashed {
			continue
		}
		items = append(items, connectors.RawItem{Payload: *ch.File})
	}

	next := resp.NewStartPageToken
	if next == "" {
		next = resp.NextPageToken
	}
	return items, connectors.Cursor(next), nil
}

type listFilesResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Files         []File `json:"files"`
}

func (c *Connector) fetchFullScan(ctx context.Context, window connectors.Window) ([]connectors.RawItem, connectors.Cursor, error) {
	q := fmt.Sprintf("modifiedTime > '%s' and trashed = false", window.Start.UTC().Format(time.RFC3339))
	reqURL := fmt.Sprintf(
		"https://www.googleapis.com/drive/v3/files?q=%s&fields=nextPageToken,files(id,name,mimeType,modifiedTime,md5Checksum,trashed)&pageSize=100&supportsAllDrives=true&includeItemsFromAllDrives=true",
		url.QueryEscape(q),
	)
	var resp listFilesResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, "", err
	}
	items := make([]connectors.RawItem, 0, len(resp.Files))
	for _, f := range resp.Files {
		if shouldSkipFile(f.MimeType) {
			continue
		}
		items = append(items, connectors.RawItem{Payload: f})
	}
	// A full scan is exhausted after its single page in this minimal
	// implementation; subsequent syncs rely on the delta path once a
	// start-page-token has been recorded by the caller.
	return items, "", nil
}

// renameOnly reports whether a file's content is unchanged from the
// stored metadata (md5 match, or modifiedTime match for Workspace files
// that carry no md5), per spec §4.1's rename-only skip rule.
func (c *Connector) renameOnly(f File, known KnownFile, isWorkspace bool) bool {
	if isWorkspace {
		return known.ModifiedTime != "" && known.ModifiedTime == f.ModifiedTime && known.Name != f.Name
	}
	return known.MD5Checksum != "" && known.MD5Checksum == f.MD5Checksum && known.Name != f.Name
}

// IsRenameOnlyForKnown looks up the connector's own cache of previously
// seen file metadata (populated by the caller after each successful sync)
// and applies renameOnly against it.
func (c *Connector) IsRenameOnlyForKnown(f File) bool {
	known, ok := c.known[f.ID]
	if !ok {
		return false
	}
	return c.renameOnly(f, known, isGoogleWorkspaceFile(f.MimeType))
}

// IsRenameOnly implements connectors.RenameDetector.
func (c *Connector) IsRenameOnly(item connectors.RawItem) (bool, connectors.RenameUpdate, bool) {
	f, ok := item.Payload.(File)
	if !ok {
		return false, connectors.RenameUpdate{}, false
	}
	known, ok := c.known[f.ID]
	if !ok {
		return false, connectors.RenameUpdate{}, false
	}
	renamed := c.renameOnly(f, known, isGoogleWorkspaceFile(f.MimeType))
	return renamed, connectors.RenameUpdate{DocumentType: store.DocumentTypeGoogleDrive, SourceID: f.ID, Title: f.Name}, true
}

// Remember implements connectors.RenameDetector: it records a file's
// metadata after a successful sync so future calls to IsRenameOnly (and
// IsRenameOnlyForKnown) can detect rename-only updates.
func (c *Connector) Remember(item connectors.RawItem) {
	f, ok := item.Payload.(File)
	if !ok {
		return
	}
	c.known[f.ID] = KnownFile{MD5Checksum: f.MD5Checksum, ModifiedTime: f.ModifiedTime, Name: f.Name}
}

// ToCanonical implements connectors.SourceCapability. Workspace files are
// exported to PDF via the Drive export endpoint before their content is
// extracted; non-Workspace files are downloaded directly.
func (c *Connector) ToCanonical(item connectors.RawItem) (store.CanonicalDocument, error) {
	f, ok := item.Payload.(File)
	if !ok {
		return store.CanonicalDocument{}, fmt.Errorf("gdrive: unexpected raw item type %T", item.Payload)
	}

	body, err := c.downloadBody(context.Background(), f)
	if err != nil {
		return store.CanonicalDocument{}, err
	}

	return store.CanonicalDocument{
		Title:    f.Name,
		Type:     store.DocumentTypeGoogleDrive,
		SourceID: f.ID,
		Metadata: map[string]string{
			"google_drive_file_name": f.Name,
			"mime_type":              f.MimeType,
			"modified_time":          f.ModifiedTime,
			"md5_checksum":           f.MD5Checksum,
		},
		BodyMarkdown: body,
	}, nil
}

func (c *Connector) downloadBody(ctx context.Context, f File) (string, error) {
	var reqURL string
	if isGoogleWorkspaceFile(f.MimeType) {
		export, ok := exportFormats[f.MimeType]
		if !ok {
			return "", fmt.Errorf("gdrive: no export format for %s", f.MimeType)
		}
		reqURL = fmt.Sprintf("https://www.googleapis.com/drive/v3/files/%s/export?mimeType=%s", f.ID, url.QueryEscape(export))
	} else {
		reqURL = fmt.Sprintf("https://www.googleapis.com/drive/v3/files/%s?alt=media", f.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gdrive: download %s: %w", f.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("gdrive: download %s: status %d", f.ID, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	// Binary export formats (PDF) are handled by a dedicated extractor in
	// the full pipeline; here the raw bytes are surfaced as-is so the
	// ingestion pipeline's summarizer/chunker can run its own extraction
	// step, matching content_extractor.py's separation of download vs.
	// text extraction.
	return string(b), nil
}

func (c *Connector) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gdrive: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gdrive: request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

