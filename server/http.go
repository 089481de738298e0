package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/ralim/titlecheck/registry"
	"github.com/ralim/titlecheck/titles"
	"github.com/ralim/titlecheck/updates"
	"github.com/rs/zerolog/hlog"
)

type titleRecord struct {
	TitleID titles.TitleID `json:"titleId"`
	Kind    string         `json:"kind"`
	Version uint32         `json:"version"`
	Path    string         `json:"path"`
}

type scanAccepted struct {
	ID uuid.UUID `json:"id"`
}

func (server *Server) writeJSON(respWriter http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	respWriter.Header().Set("Content-Type", "application/json")
	respWriter.WriteHeader(status)
	if err := json.NewEncoder(respWriter).Encode(payload); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Sending response failed")
	}
}

func (server *Server) httpHandleTitles(respWriter http.ResponseWriter, r *http.Request) {
	known := server.library.Registry().Titles()
	response := make([]titleRecord, 0, len(known))
	for _, title := range known {
		response = append(response, titleRecord{
			TitleID: title.ID,
			Kind:    title.ID.Kind().String(),
			Version: title.Version,
			Path:    title.Path,
		})
	}
	server.writeJSON(respWriter, r, http.StatusOK, response)
}

func (server *Server) httpHandleVersions(respWriter http.ResponseWriter, r *http.Request) {
	server.writeJSON(respWriter, r, http.StatusOK, server.library.TitleVersionInfo())
}

func (server *Server) httpHandleOutdated(respWriter http.ResponseWriter, r *http.Request) {
	server.writeJSON(respWriter, r, http.StatusOK, updates.Outdated(server.library.TitleVersionInfo()))
}

func (server *Server) httpHandleScanRequest(respWriter http.ResponseWriter, r *http.Request) {
	root := r.URL.Query().Get("path")
	if root == "" {
		http.Error(respWriter, "path is required", http.StatusBadRequest)
		return
	}
	id, err := server.library.RequestScan(root)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("path", root).Msg("Scan request refused")
		if errors.Is(err, registry.ErrNotADirectory) {
			http.Error(respWriter, "path is not a directory", http.StatusBadRequest)
		} else {
			http.Error(respWriter, "scan could not be queued", http.StatusServiceUnavailable)
		}
		return
	}
	server.writeJSON(respWriter, r, http.StatusAccepted, scanAccepted{ID: id})
}

func (server *Server) httpHandleScanStatus(respWriter http.ResponseWriter, r *http.Request) {
	head, _ := ShiftPath(r.URL.Path)
	id, err := uuid.Parse(head)
	if err != nil {
		http.Error(respWriter, "Scan not found", http.StatusNotFound)
		return
	}
	job, ok := server.library.ScanJob(id)
	if !ok {
		http.Error(respWriter, "Scan not found", http.StatusNotFound)
		return
	}
	server.writeJSON(respWriter, r, http.StatusOK, job)
}

func (server *Server) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	var head string
	head, req.URL.Path = ShiftPath(req.URL.Path)

	switch head {
	case "scan":
		if req.Method == http.MethodPost && req.URL.Path == "/" {
			server.httpHandleScanRequest(res, req)
			return
		}
		if req.Method == http.MethodGet && req.URL.Path != "/" {
			server.httpHandleScanStatus(res, req)
			return
		}
		http.Error(res, "Only POST /scan and GET /scan/<id> are allowed", http.StatusMethodNotAllowed)
		return
	}

	if req.Method != http.MethodGet {
		http.Error(res, "Only GET is allowed", http.StatusMethodNotAllowed)
		return
	}
	switch head {
	case "titles.json":
		server.httpHandleTitles(res, req)
	case "versions.json":
		server.httpHandleVersions(res, req)
	case "outdated.json":
		server.httpHandleOutdated(res, req)
	default:
		http.NotFound(res, req)
	}
}

// ShiftPath splits off the front portion of the provided path into head and then returns the remainder in tail
func ShiftPath(pathIn string) (head, tail string) {
	pathIn = path.Clean("/" + pathIn)
	i := strings.Index(pathIn[1:], "/") + 1
	if i <= 0 {
		return pathIn[1:], "/"
	}
	return pathIn[1:i], pathIn[i:]
}
