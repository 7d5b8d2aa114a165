package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nsavio/crabdb/pkg/compression"
	"github.com/nsavio/crabdb/pkg/storage"
)

// handleDebugPage fetches a page read-guard, compresses its bytes with
// pkg/compression (zstd by default), and returns the compressed payload
// with algorithm/ratio headers.
func (s *Server) handleDebugPage(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_page_id", err.Error())
		return
	}

	guard, err := s.eng.Pool().FetchPageRead(storage.PageID(id))
	if err != nil {
		writeError(w, http.StatusNotFound, "page_fetch_failed", err.Error())
		return
	}
	page := &storage.Page{ID: storage.PageID(id)}
	copy(page.Data[:], guard.Data())
	guard.Drop()

	cp, err := compression.NewCompressedPage(compression.DefaultConfig())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "compressor_init_failed", err.Error())
		return
	}
	defer cp.Close()

	stats, err := cp.GetPageCompressionStats(page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "compression_failed", err.Error())
		return
	}

	compressed, err := cp.CompressPage(page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "compression_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Compression-Algorithm", stats.Algorithm)
	w.Header().Set("X-Compression-Ratio", strconv.FormatFloat(stats.Ratio, 'f', 4, 64))
	w.Header().Set("X-Original-Size", strconv.Itoa(stats.OriginalSize))
	w.Header().Set("X-Compressed-Size", strconv.Itoa(stats.CompressedSize))
	w.WriteHeader(http.StatusOK)
	w.Write(compressed)
}
