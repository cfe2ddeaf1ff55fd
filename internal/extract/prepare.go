package extract

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/qb-bastiaan/invoice-processor-app/constants"
	"github.com/qb-bastiaan/invoice-processor-app/internal/common"
)

// PreparedDocument is the encoded form handed to the model plus the preview
// payload emitted once on the stream.
type PreparedDocument struct {
	Inline     InlineDocument
	Base64Data string
	PageCount  int // PDFs only, 0 when unknown
}

// PrepareDocument reads the document bytes, determines the media type from the
// extension and encodes the payload. For PDFs it also records a page count as
// a diagnostic; a failed count is logged and ignored.
func PrepareDocument(doc Document, logger *slog.Logger) (PreparedDocument, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mediaType, ok := constants.MediaTypeForExt(filepath.Ext(doc.Path))
	if !ok {
		return PreparedDocument{}, common.NewAppError("UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("unsupported file type: %s", filepath.Ext(doc.Path)), common.ErrDocument)
	}

	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		return PreparedDocument{}, common.NewAppError("FILE_READ_ERROR",
			fmt.Sprintf("could not prepare invoice file %s: %v", doc.Name, err), common.ErrDocument)
	}

	prepared := PreparedDocument{
		Inline:     InlineDocument{MediaType: mediaType, Data: raw},
		Base64Data: base64.StdEncoding.EncodeToString(raw),
	}

	if mediaType == constants.MediaTypePDF {
		if n, err := api.PageCountFile(doc.Path); err != nil {
			logger.Warn("prepare.page_count_failed", "file", doc.Name, "error", err)
		} else {
			prepared.PageCount = n
		}
	}

	return prepared, nil
}
