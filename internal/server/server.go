// Package server exposes the administration API over JSON/HTTP. Handlers
// stay thin: decode, delegate to a service, map the error to a status.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"raceadmin/internal/domain"
	"raceadmin/internal/repository"
	"raceadmin/internal/service"
	"raceadmin/internal/tasks"

	"github.com/rs/zerolog"
)

type Server struct {
	rosterSvc    *service.RosterImportService
	importSvc    *service.ImportService
	confirmSvc   *service.ConfirmService
	standingsSvc *service.StandingsService
	raceRepo     *repository.RaceRepository
	seriesRepo   *repository.SeriesRepository
	stagedRepo   *repository.StagedResultRepository
	tasks        *tasks.Manager
	logger       zerolog.Logger
}

func NewServer(
	rosterSvc *service.RosterImportService,
	importSvc *service.ImportService,
	confirmSvc *service.ConfirmService,
	standingsSvc *service.StandingsService,
	raceRepo *repository.RaceRepository,
	seriesRepo *repository.SeriesRepository,
	stagedRepo *repository.StagedResultRepository,
	taskManager *tasks.Manager,
	logger zerolog.Logger,
) *Server {
	return &Server{
		rosterSvc:    rosterSvc,
		importSvc:    importSvc,
		confirmSvc:   confirmSvc,
		standingsSvc: standingsSvc,
		raceRepo:     raceRepo,
		seriesRepo:   seriesRepo,
		stagedRepo:   stagedRepo,
		tasks:        taskManager,
		logger:       logger,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /clubs/{club}/roster", s.handleRosterImport)

	mux.HandleFunc("POST /races", s.handleCreateRace)
	mux.HandleFunc("POST /races/{id}/results", s.handleImportResults)
	mux.HandleFunc("POST /races/{id}/feed", s.handleImportFromFeed)
	mux.HandleFunc("GET /races/{id}/results", s.handleListStaged)
	mux.HandleFunc("POST /races/{id}/tabulate", s.handleTabulate)
	mux.HandleFunc("GET /races/{id}/standings", s.handleStandings)

	mux.HandleFunc("POST /series", s.handleCreateSeries)
	mux.HandleFunc("POST /series/{id}/divisions", s.handleCreateDivision)
	mux.HandleFunc("POST /series/{id}/races/{raceID}", s.handleAttachRace)

	mux.HandleFunc("POST /results/{ref}/confirm", s.handleConfirm)
	mux.HandleFunc("POST /results/{ref}/unconfirm", s.handleUnconfirm)
	mux.HandleFunc("POST /results/{ref}/register", s.handleRegisterNonMember)
	mux.HandleFunc("POST /results/{ref}/notused", s.handleMarkNotUsed)

	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /tasks/{id}/cancel", s.handleCancelTask)
}

type rosterImportRequest struct {
	Records []domain.RosterRecord `json:"records"`
}

func (s *Server) handleRosterImport(w http.ResponseWriter, r *http.Request) {
	var req rosterImportRequest
	if !s.decode(w, r, &req) {
		return
	}
	summary, err := s.rosterSvc.ImportRoster(r.Context(), r.PathValue("club"), req.Records)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

type createRaceRequest struct {
	ClubID      int     `json:"club_id"`
	Name        string  `json:"name"`
	Date        string  `json:"date"` // 2006-01-02
	DistanceKM  float64 `json:"distance_km"`
	Surface     string  `json:"surface"`
	MembersOnly bool    `json:"members_only"`
}

func (s *Server) handleCreateRace(w http.ResponseWriter, r *http.Request) {
	var req createRaceRequest
	if !s.decode(w, r, &req) {
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		s.writeBadRequest(w, "date must be YYYY-MM-DD")
		return
	}
	if req.DistanceKM <= 0 {
		s.writeBadRequest(w, "distance_km must be positive")
		return
	}
	surface := domain.Surface(req.Surface)
	switch surface {
	case domain.SurfaceRoad, domain.SurfaceTrack, domain.SurfaceTrail:
	case "":
		surface = domain.SurfaceRoad
	default:
		s.writeBadRequest(w, "surface must be road, track or trail")
		return
	}

	race := &domain.Race{
		ClubID:      req.ClubID,
		Name:        req.Name,
		Date:        date,
		DistanceKM:  req.DistanceKM,
		Surface:     surface,
		MembersOnly: req.MembersOnly,
	}
	if err := s.raceRepo.Create(r.Context(), race); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, race)
}

type importResultsRequest struct {
	Results []domain.ResultRecord `json:"results"`
}

type taskStartedResponse struct {
	TaskID string `json:"task_id"`
}

func (s *Server) handleImportResults(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	var req importResultsRequest
	if !s.decode(w, r, &req) {
		return
	}
	taskID, err := s.importSvc.ImportResults(r.Context(), raceID, req.Results)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, taskStartedResponse{TaskID: taskID})
}

type feedImportRequest struct {
	RaceKey string `json:"race_key"`
}

func (s *Server) handleImportFromFeed(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	var req feedImportRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.RaceKey == "" {
		s.writeBadRequest(w, "race_key is required")
		return
	}
	taskID, err := s.importSvc.ImportFromFeed(r.Context(), raceID, req.RaceKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, taskStartedResponse{TaskID: taskID})
}

func (s *Server) handleListStaged(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	staged, err := s.stagedRepo.ListByRace(r.Context(), raceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, staged)
}

func (s *Server) handleTabulate(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	taskID, err := s.standingsSvc.TabulateRace(r.Context(), raceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, taskStartedResponse{TaskID: taskID})
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	raceID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	seriesID, err := strconv.Atoi(r.URL.Query().Get("series"))
	if err != nil {
		s.writeBadRequest(w, "series query parameter is required")
		return
	}
	ranked, err := s.standingsSvc.Standings(r.Context(), raceID, seriesID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ranked)
}

type createSeriesRequest struct {
	ClubID           int    `json:"club_id"`
	Name             string `json:"name"`
	Year             int    `json:"year"`
	OrderBy          string `json:"order_by"`
	Descending       bool   `json:"descending"`
	MembersOnly      bool   `json:"members_only"`
	DivisionsEnabled bool   `json:"divisions_enabled"`
	TiePolicy        string `json:"tie_policy"`
}

func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var req createSeriesRequest
	if !s.decode(w, r, &req) {
		return
	}
	orderBy := domain.OrderBy(req.OrderBy)
	switch orderBy {
	case domain.OrderByTime, domain.OrderByAGTime, domain.OrderByAGPercent, domain.OrderByOverall:
	default:
		s.writeBadRequest(w, "order_by must be time, agtime, agpercent or overall")
		return
	}
	tiePolicy := domain.TiePolicy(req.TiePolicy)
	switch tiePolicy {
	case domain.TieShare, domain.TieAverage:
	case "":
		tiePolicy = domain.TieShare
	default:
		s.writeBadRequest(w, "tie_policy must be share or average")
		return
	}

	sc := &domain.SeriesConfig{
		ClubID:           req.ClubID,
		Name:             req.Name,
		Year:             req.Year,
		OrderBy:          orderBy,
		Descending:       req.Descending,
		MembersOnly:      req.MembersOnly,
		DivisionsEnabled: req.DivisionsEnabled,
		TiePolicy:        tiePolicy,
	}
	if err := s.seriesRepo.Create(r.Context(), sc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sc)
}

type createDivisionRequest struct {
	Year    int `json:"year"`
	LowAge  int `json:"low_age"`
	HighAge int `json:"high_age"`
}

func (s *Server) handleCreateDivision(w http.ResponseWriter, r *http.Request) {
	seriesID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	var req createDivisionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.LowAge < 0 || req.HighAge < req.LowAge {
		s.writeBadRequest(w, "division bracket must satisfy 0 <= low_age <= high_age")
		return
	}
	d := &domain.DivisionConfig{
		SeriesID: seriesID,
		Year:     req.Year,
		LowAge:   req.LowAge,
		HighAge:  req.HighAge,
	}
	if err := s.seriesRepo.CreateDivision(r.Context(), d); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleAttachRace(w http.ResponseWriter, r *http.Request) {
	seriesID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	raceID, err := strconv.Atoi(r.PathValue("raceID"))
	if err != nil {
		s.writeBadRequest(w, "raceID must be an integer")
		return
	}
	if err := s.seriesRepo.AttachRace(r.Context(), raceID, seriesID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmRequest struct {
	EntryID int `json:"entry_id"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.EntryID <= 0 {
		s.writeBadRequest(w, "entry_id is required")
		return
	}
	s.applyDecision(w, r, func() error {
		return s.confirmSvc.Confirm(r.Context(), r.PathValue("ref"), req.EntryID)
	})
}

func (s *Server) handleUnconfirm(w http.ResponseWriter, r *http.Request) {
	s.applyDecision(w, r, func() error {
		return s.confirmSvc.Unconfirm(r.Context(), r.PathValue("ref"))
	})
}

func (s *Server) handleRegisterNonMember(w http.ResponseWriter, r *http.Request) {
	s.applyDecision(w, r, func() error {
		return s.confirmSvc.RegisterNonMember(r.Context(), r.PathValue("ref"))
	})
}

func (s *Server) handleMarkNotUsed(w http.ResponseWriter, r *http.Request) {
	s.applyDecision(w, r, func() error {
		return s.confirmSvc.MarkNotUsed(r.Context(), r.PathValue("ref"))
	})
}

// applyDecision runs one administrator decision and returns the updated
// staged result so the caller sees the new disposition immediately.
func (s *Server) applyDecision(w http.ResponseWriter, r *http.Request, apply func() error) {
	if err := apply(); err != nil {
		s.writeError(w, r, err)
		return
	}
	staged, err := s.stagedRepo.GetByRef(r.Context(), r.PathValue("ref"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, staged)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.tasks.Get(r.PathValue("id"))
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "task not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	if !s.tasks.Cancel(r.PathValue("id")) {
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: "task not found or already finished"})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) pathInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	v, err := strconv.Atoi(r.PathValue(key))
	if err != nil {
		s.writeBadRequest(w, key+" must be an integer")
		return 0, false
	}
	return v, true
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrClubNotFound),
		errors.Is(err, repository.ErrRosterEntryNotFound),
		errors.Is(err, repository.ErrRaceNotFound),
		errors.Is(err, repository.ErrStagedResultNotFound),
		errors.Is(err, repository.ErrSeriesNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrRaceHasNoSeries),
		errors.Is(err, service.ErrNotConfirmable),
		errors.Is(err, service.ErrNotUnconfirmable),
		errors.Is(err, service.ErrMembersOnlyRace):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
