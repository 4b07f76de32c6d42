package main

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamgate-io/streamgate/pkg/queue"
	"github.com/streamgate-io/streamgate/pkg/store"
	"github.com/streamgate-io/streamgate/pkg/upload"
)

// reportStatus is the client-facing view of a report job.
type reportStatus struct {
	JobID        string `json:"jobId"`
	State        string `json:"state"`
	Filename     string `json:"filename,omitempty"`
	ByteSize     int64  `json:"byteSize,omitempty"`
	AttemptsMade int    `json:"attemptsMade"`
	MaxAttempts  int    `json:"maxAttempts"`
	LastError    string `json:"lastError,omitempty"`
	OutputPath   string `json:"outputPath,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// uploadHandler ingests a report payload. Multipart requests stream the
// "file" part; anything else streams the raw body with the filename taken
// from the query string. The body is never buffered in memory.
func uploadHandler(ing *upload.Ingestor, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, filename, mimeType, err := uploadStream(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		receipt, err := ing.Ingest(r.Context(), body, filename, mimeType)
		if err != nil {
			switch {
			case errors.Is(err, upload.ErrPayloadTooLarge):
				writeError(w, http.StatusRequestEntityTooLarge, "payload exceeds size limit")
			case errors.Is(err, upload.ErrClientAborted):
				// The client is gone; the status code is for the logs.
				writeError(w, http.StatusBadRequest, "upload aborted")
			case errors.Is(err, upload.ErrAlreadyExists):
				writeError(w, http.StatusConflict, "destination already exists")
			default:
				logger.Error().Err(err).Msg("Upload ingestion failed")
				writeError(w, http.StatusInternalServerError, "upload failed")
			}
			return
		}

		writeJSON(w, http.StatusCreated, receipt)
	}
}

// uploadStream picks the payload stream out of the request.
func uploadStream(r *http.Request) (io.Reader, string, string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		mr, err := r.MultipartReader()
		if err != nil {
			return nil, "", "", errors.New("malformed multipart body")
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil, "", "", errors.New("multipart body has no file field")
			}
			if err != nil {
				return nil, "", "", errors.New("malformed multipart body")
			}
			if part.FormName() == "file" {
				return part, part.FileName(), part.Header.Get("Content-Type"), nil
			}
		}
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		return nil, "", "", errors.New("filename query parameter is required for raw uploads")
	}
	return r.Body, filename, r.Header.Get("Content-Type"), nil
}

// reportStatusHandler serves GET /reports/{id}. Jobs whose hash was retired
// by dead-lettering are resolved from the dead-letter queue.
func reportStatusHandler(q *queue.Queue, p *upload.Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		job, state, err := q.Lookup(r.Context(), id)
		if err == nil {
			status := reportStatus{
				JobID:        job.ID,
				State:        string(state),
				Filename:     job.Filename,
				ByteSize:     job.ByteSize,
				AttemptsMade: job.AttemptsMade,
				MaxAttempts:  job.MaxAttempts,
				LastError:    job.LastError,
			}
			if state == queue.StateCompleted {
				status.OutputPath = p.OutputPath(job.FileID)
			}
			writeJSON(w, http.StatusOK, status)
			return
		}
		if !errors.Is(err, queue.ErrJobNotFound) {
			writeError(w, http.StatusInternalServerError, "status lookup failed")
			return
		}

		records, dlqErr := q.DeadLettersByJobID(r.Context(), id)
		if dlqErr != nil {
			writeError(w, http.StatusInternalServerError, "status lookup failed")
			return
		}
		if len(records) == 0 {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}

		rec := records[len(records)-1]
		writeJSON(w, http.StatusOK, reportStatus{
			JobID:        rec.OriginalJobID,
			State:        string(queue.StateDead),
			Filename:     rec.Filename,
			ByteSize:     rec.ByteSize,
			AttemptsMade: rec.AttemptsMade,
			MaxAttempts:  rec.MaxAttempts,
			LastError:    rec.FailReason,
		})
	}
}

// deleteReportHandler removes a report's stored upload and processed
// artifact. The cache invalidation wrapper handles the entity:id key.
func deleteReportHandler(q *queue.Queue, p *upload.Processor, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		job, _, err := q.Lookup(r.Context(), id)
		if errors.Is(err, queue.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}

		for _, path := range []string{job.FilePath, p.OutputPath(job.FileID)} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Error().Err(err).Str("path", path).Msg("Failed to remove report artifact")
			}
		}

		// Retire the job record too, or a later status read would report a
		// completed job whose artifact is gone.
		if err := q.Remove(r.Context(), id); err != nil {
			logger.Error().Err(err).Str("job_id", id).Msg("Failed to remove job record")
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"jobId": id, "status": "deleted"})
	}
}

// dlqHandler serves GET /admin/dlq. Optional query parameters: jobId for an
// exact original-job match, from/to as unix seconds for a time-range scan.
func dlqHandler(q *queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jobID := r.URL.Query().Get("jobId"); jobID != "" {
			records, err := q.DeadLettersByJobID(r.Context(), jobID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "dead-letter lookup failed")
				return
			}
			writeJSON(w, http.StatusOK, records)
			return
		}

		from, err := unixParam(r, "from", time.Time{})
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from parameter")
			return
		}
		to, err := unixParam(r, "to", time.Time{})
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to parameter")
			return
		}

		records, err := q.DeadLetters(r.Context(), from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "dead-letter lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func unixParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}

// healthHandler reports liveness and store reachability.
func healthHandler(st *store.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"store":  "unreachable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// compile-time check that *queue.Queue feeds the ingestor.
var _ upload.Enqueuer = (*queue.Queue)(nil)
