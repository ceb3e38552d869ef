package garmin

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/florianilch/garmin-connect-go/internal/endpoint"
	"github.com/florianilch/garmin-connect-go/internal/transport"
)

// ExportFormat selects the representation of an activity download.
type ExportFormat string

const (
	ExportTCX ExportFormat = "tcx"
	ExportGPX ExportFormat = "gpx"
	ExportKML ExportFormat = "kml"
	ExportZip ExportFormat = "zip"
)

// exportFormats binds each format to its resource and body representation.
// Only zip archives are binary; the other formats are XML documents.
var exportFormats = map[ExportFormat]struct {
	resource     endpoint.Resource
	responseType transport.ResponseType
}{
	ExportTCX: {endpoint.DownloadTCX, transport.ResponseText},
	ExportGPX: {endpoint.DownloadGPX, transport.ResponseText},
	ExportKML: {endpoint.DownloadKML, transport.ResponseText},
	ExportZip: {endpoint.DownloadZip, transport.ResponseBinary},
}

// ExportFormats lists the supported formats.
func ExportFormats() []ExportFormat {
	return []ExportFormat{ExportTCX, ExportGPX, ExportKML, ExportZip}
}

// ParseExportFormat validates s against the supported formats.
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := exportFormats[f]; !ok {
		return "", invalidArgument("format", fmt.Sprintf("unsupported export format %q", s))
	}
	return f, nil
}

// FileSystem persists downloaded exports.
type FileSystem interface {
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
}

// OSFileSystem writes to the local disk.
type OSFileSystem struct{}

func (OSFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// ExportFileName is the file name used when an export is saved to a directory.
func ExportFileName(activityID int64, format ExportFormat) string {
	return strconv.FormatInt(activityID, 10) + "." + string(format)
}

func saveExport(fs FileSystem, dir string, activityID int64, format ExportFormat, data []byte) (string, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, ExportFileName(activityID, format))
	if err := fs.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export %s: %w", path, err)
	}
	return path, nil
}
