// Package enumerate lists candidate input documents. The filtered,
// directory-ordered listing is the authoritative index space for a batch; it
// is recomputed on every request, so the effective ordering is a live view of
// the input directory.
package enumerate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qb-bastiaan/invoice-processor-app/constants"
	"github.com/qb-bastiaan/invoice-processor-app/internal/common"
	"github.com/qb-bastiaan/invoice-processor-app/internal/extract"
)

// Enumerator lists supported documents in a configured input location.
type Enumerator struct {
	InputDir string
}

func New(inputDir string) *Enumerator {
	return &Enumerator{InputDir: inputDir}
}

// List returns all supported documents in directory-listing order. Index i of
// the returned slice is the batch cursor value i for this enumeration call.
func (e *Enumerator) List() ([]extract.Document, error) {
	entries, err := os.ReadDir(e.InputDir)
	if err != nil {
		return nil, common.NewAppError("ENUMERATION_ERROR",
			fmt.Sprintf("read input directory %s", e.InputDir), common.ErrEnumeration)
	}

	docs := make([]extract.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mediaType, ok := constants.MediaTypeForExt(filepath.Ext(entry.Name()))
		if !ok {
			continue
		}
		docs = append(docs, extract.Document{
			Name:      entry.Name(),
			Path:      filepath.Join(e.InputDir, entry.Name()),
			MediaType: mediaType,
		})
	}
	return docs, nil
}
