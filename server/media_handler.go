package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"mxfedl/core/edl"
	"mxfedl/core/job"
	"mxfedl/logger"
	"mxfedl/model"

	"github.com/google/uuid"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)

// safeObjectName keeps the extension and readable part of name and makes it unique.
func safeObjectName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeFileChars.ReplaceAllString(strings.ReplaceAll(base, " ", "_"), "")
	if base == "" || base == "." || base == ".." {
		base = "upload.mxf"
	}
	if len(base) > 150 {
		base = base[len(base)-150:]
	}
	return uuid.NewString() + "_" + base
}

type acceptedResponse struct {
	ID     uint              `json:"id"`
	Status model.MediaStatus `json:"status"`
}

// UploadMediaHandler stores a multipart "file" and schedules it.
func (h *APIHandler) UploadMediaHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Form field \"file\" is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	locator, err := h.uploads.PutUpload(r.Context(), safeObjectName(fileName), file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		h.log.Error("[Upload] 保存上传文件失败", logger.String("file", fileName), logger.ErrorField(err))
		http.Error(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	media, err := h.jobs.Submit(r.Context(), fileName, locator)
	if err != nil {
		h.log.Error("[Upload] 提交任务失败", logger.String("file", fileName), logger.ErrorField(err))
		http.Error(w, "Failed to register media file", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{ID: media.ID, Status: media.Status})
}

// SubmitJobHandler schedules a file that is already reachable by locator.
func (h *APIHandler) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName string `json:"fileName"`
		Locator  string `json:"locator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Locator = strings.TrimSpace(req.Locator)
	if req.Locator == "" {
		http.Error(w, "locator is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.FileName) == "" {
		req.FileName = filepath.Base(req.Locator)
	}

	media, err := h.jobs.Submit(r.Context(), req.FileName, req.Locator)
	if err != nil {
		h.log.Error("[Jobs] 提交任务失败", logger.String("locator", req.Locator), logger.ErrorField(err))
		http.Error(w, "Failed to register media file", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{ID: media.ID, Status: media.Status})
}

// ProcessMediaHandler starts a pending media file.
func (h *APIHandler) ProcessMediaHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid media id", http.StatusBadRequest)
		return
	}

	err := h.jobs.Start(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, acceptedResponse{ID: id, Status: model.MediaStatusPending})
	case errors.Is(err, job.ErrNotFound):
		http.Error(w, "Media file not found", http.StatusNotFound)
	case errors.Is(err, job.ErrAlreadyActive), errors.Is(err, job.ErrNotPending):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("[Process] 启动任务失败", logger.Uint("mediaId", id), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

type occurrenceResponse struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	StartMs   int64  `json:"startMs"`
	EndMs     int64  `json:"endMs"`
}

type trackResponse struct {
	ID          uint                 `json:"id"`
	Name        string               `json:"name"`
	Artist      string               `json:"artist"`
	Album       string               `json:"album,omitempty"`
	Year        string               `json:"year,omitempty"`
	Authors     []string             `json:"authors"`
	Genres      []string             `json:"genres"`
	ISRC        string               `json:"isrc,omitempty"`
	ImageURL    string               `json:"imageUrl,omitempty"`
	Occurrences []occurrenceResponse `json:"occurrences"`
}

type mediaResponse struct {
	ID        uint              `json:"id"`
	FileName  string            `json:"fileName"`
	Status    model.MediaStatus `json:"status"`
	EDLID     *uint             `json:"edlId,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Tracks    []trackResponse   `json:"audioTracks,omitempty"`
}

func newMediaResponse(m *model.MediaFile) mediaResponse {
	resp := mediaResponse{
		ID:        m.ID,
		FileName:  m.FileName,
		Status:    m.Status,
		EDLID:     m.EDLID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Status != model.MediaStatusProcessed {
		return resp
	}
	resp.Tracks = make([]trackResponse, 0, len(m.AudioTracks))
	for _, t := range m.AudioTracks {
		tr := trackResponse{
			ID:          t.ID,
			Name:        t.Name,
			Artist:      t.Artist,
			Album:       t.Album,
			Year:        t.Year,
			Authors:     append([]string{}, t.Authors...),
			Genres:      append([]string{}, t.Genres...),
			ISRC:        t.ISRC,
			ImageURL:    t.ImageURL,
			Occurrences: make([]occurrenceResponse, 0, len(t.Occurrences)),
		}
		for _, o := range t.Occurrences {
			tr.Occurrences = append(tr.Occurrences, occurrenceResponse{
				StartTime: edl.Clock(o.StartTime),
				EndTime:   edl.Clock(o.EndTime),
				StartMs:   o.StartTime,
				EndMs:     o.EndTime,
			})
		}
		resp.Tracks = append(resp.Tracks, tr)
	}
	return resp
}

// GetMediaHandler returns status and, once processed, the recognized tracks.
func (h *APIHandler) GetMediaHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid media id", http.StatusBadRequest)
		return
	}
	media, err := h.store(r).Media.GetWithTracks(r.Context(), id)
	if err != nil {
		h.log.Error("[Media] 查询失败", logger.Uint("mediaId", id), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if media == nil {
		http.Error(w, "Media file not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newMediaResponse(media))
}

// ListMediaHandler returns the most recent media files.
func (h *APIHandler) ListMediaHandler(w http.ResponseWriter, r *http.Request) {
	files, err := h.store(r).Media.List(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		h.log.Error("[Media] 列表查询失败", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	out := make([]mediaResponse, 0, len(files))
	for _, m := range files {
		out = append(out, newMediaResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func contentDisposition(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
