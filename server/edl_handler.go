package server

import (
	"net/http"
	"strconv"

	"mxfedl/logger"
	"mxfedl/model"
)

func (h *APIHandler) loadEDL(w http.ResponseWriter, r *http.Request) *model.EDLDocument {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid EDL id", http.StatusBadRequest)
		return nil
	}
	doc, err := h.store(r).EDL.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error("[EDL] 查询失败", logger.Uint("edlId", id), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil
	}
	if doc == nil {
		http.Error(w, "EDL not found", http.StatusNotFound)
		return nil
	}
	return doc
}

// GetEDLHandler returns the EDL record without its text.
func (h *APIHandler) GetEDLHandler(w http.ResponseWriter, r *http.Request) {
	if doc := h.loadEDL(w, r); doc != nil {
		writeJSON(w, http.StatusOK, doc)
	}
}

// DownloadEDLHandler returns the EDL text as an attachment named after the source.
func (h *APIHandler) DownloadEDLHandler(w http.ResponseWriter, r *http.Request) {
	doc := h.loadEDL(w, r)
	if doc == nil {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", contentDisposition(doc.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Blob)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc.Blob))
}
