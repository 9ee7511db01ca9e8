package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/repository"
)

// Response is the envelope for successful responses.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// PackageView is the JSON form of a descriptor.
type PackageView struct {
	Name        string            `json:"name"`
	Version     string            `json:"version,omitempty"`
	Location    string            `json:"location"`
	Description string            `json:"description,omitempty"`
	Requires    []string          `json:"requires,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
}

// NewPackageView converts d.
func NewPackageView(d descriptor.Descriptor) PackageView {
	return PackageView{
		Name:        d.Name,
		Version:     d.VersionString(),
		Location:    d.Location,
		Description: d.Description,
		Requires:    d.Requires,
		Attributes:  d.Attributes,
		Checksum:    d.Checksum,
	}
}

// HealthView is returned by GET /health.
type HealthView struct {
	Status     string `json:"status"`
	Repository string `json:"repository"`
	Directory  string `json:"directory"`
	Packages   int    `json:"packages"`
	Auxiliary  int    `json:"auxiliary"`
}

func (s *Server) success(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.success(w, http.StatusOK, HealthView{
		Status:     "healthy",
		Repository: s.registry.Name(),
		Directory:  s.registry.Directory(),
		Packages:   len(s.registry.FindAll()),
		Auxiliary:  len(s.registry.Auxiliary()),
	})
}

func (s *Server) handleListPackages(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.FindAll()
	views := make([]PackageView, 0, len(all))
	for _, d := range all {
		views = append(views, NewPackageView(d))
	}
	s.success(w, http.StatusOK, views)
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	d, ok := s.registry.FindByName(name)
	if !ok {
		s.errors.WriteErrorResponse(w, r, ferrors.NotFoundError("package not found").
			WithContext("package", name).
			Build())
		return
	}
	s.success(w, http.StatusOK, NewPackageView(d))
}

func (s *Server) handleAuxiliary(w http.ResponseWriter, _ *http.Request) {
	aux := s.registry.Auxiliary()
	if aux == nil {
		aux = []string{}
	}
	s.success(w, http.StatusOK, aux)
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.errors.WriteErrorResponse(w, r, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid force parameter").
				WithContext("force", raw).
				Build())
			return
		}
		force = v
	}

	if err := s.registry.Trigger(r.Context(), force); err != nil {
		if errors.Is(err, repository.ErrShutdown) {
			err = ferrors.WrapError(err, ferrors.CategoryRuntime, "repository is shut down").Build()
		}
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	s.success(w, http.StatusAccepted, map[string]bool{"force": force})
}
